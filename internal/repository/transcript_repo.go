package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vidsum-backend/internal/models"
)

type TranscriptRepo struct {
	col          *mongo.Collection
	translations *mongo.Collection
}

func NewTranscriptRepo(db *mongo.Database) *TranscriptRepo {
	return &TranscriptRepo{
		col:          db.Collection("transcripts"),
		translations: db.Collection("translations"),
	}
}

func (r *TranscriptRepo) Get(ctx context.Context, videoID, language string) (*models.Transcript, error) {
	var t models.Transcript
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID, "language": language},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Put upserts a transcript keyed by (video_id, language) and returns the
// stored document, including its ObjectID for translation references.
func (r *TranscriptRepo) Put(ctx context.Context, videoID, language, text string) (*models.Transcript, error) {
	now := time.Now().UTC()
	var t models.Transcript
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID, "language": language},
		bson.M{
			"$set": bson.M{
				"transcript":    text,
				"char_count":    len(text),
				"last_accessed": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
			"$inc":         bson.M{"access_count": 1},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a transcript and cascades to its translations. A translation
// is a derived artifact of exactly one transcript, so orphans are never left
// behind.
func (r *TranscriptRepo) Delete(ctx context.Context, videoID, language string) error {
	var t models.Transcript
	err := r.col.FindOneAndDelete(ctx,
		bson.M{"video_id": videoID, "language": language},
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.translations.DeleteMany(ctx, bson.M{"transcript_id": t.ID})
	return err
}
