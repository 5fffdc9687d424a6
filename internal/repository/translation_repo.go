package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vidsum-backend/internal/models"
)

// TranslationRepo stores translations keyed by parent transcript ObjectID and
// target language. Callers state which key they hold (GetByTranscript vs
// GetByVideo) instead of the repo guessing from string shape.
type TranslationRepo struct {
	col         *mongo.Collection
	transcripts *mongo.Collection
}

func NewTranslationRepo(db *mongo.Database) *TranslationRepo {
	return &TranslationRepo{
		col:         db.Collection("translations"),
		transcripts: db.Collection("transcripts"),
	}
}

func (r *TranslationRepo) GetByTranscript(ctx context.Context, transcriptID primitive.ObjectID, language string) (*models.Translation, error) {
	var tr models.Translation
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"transcript_id": transcriptID, "language": language},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// GetByVideo resolves the source transcript first, then the translation.
// Returns (nil, nil) when either is missing.
func (r *TranslationRepo) GetByVideo(ctx context.Context, videoID, sourceLanguage, targetLanguage string) (*models.Translation, error) {
	var t models.Transcript
	err := r.transcripts.FindOne(ctx,
		bson.M{"video_id": videoID, "language": sourceLanguage},
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetByTranscript(ctx, t.ID, targetLanguage)
}

func (r *TranslationRepo) Put(ctx context.Context, transcriptID primitive.ObjectID, language, text string) (*models.Translation, error) {
	now := time.Now().UTC()
	var tr models.Translation
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"transcript_id": transcriptID, "language": language},
		bson.M{
			"$set": bson.M{
				"translation":   text,
				"char_count":    len(text),
				"last_accessed": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
			"$inc":         bson.M{"access_count": 1},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&tr)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListByTranscript returns all stored translations of one transcript, without
// touching access stats.
func (r *TranslationRepo) ListByTranscript(ctx context.Context, transcriptID primitive.ObjectID) ([]*models.Translation, error) {
	cur, err := r.col.Find(ctx, bson.M{"transcript_id": transcriptID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Translation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
