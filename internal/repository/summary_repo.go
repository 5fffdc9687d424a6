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

type SummaryRepo struct {
	col *mongo.Collection
}

func NewSummaryRepo(db *mongo.Database) *SummaryRepo {
	return &SummaryRepo{col: db.Collection("summaries")}
}

func (r *SummaryRepo) Get(ctx context.Context, videoID, language string) (*models.Summary, error) {
	var s models.Summary
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID, "language": language},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Put upserts summary content. Ownership attribution is first-writer-wins:
// a later writer can replace the text but never the owner_user_id.
func (r *SummaryRepo) Put(ctx context.Context, videoID, language, text, ownerUserID string) (*models.Summary, error) {
	now := time.Now().UTC()
	var s models.Summary
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID, "language": language},
		bson.M{
			"$set": bson.M{
				"summary":       text,
				"char_count":    len(text),
				"last_accessed": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
			"$inc":         bson.M{"access_count": 1},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&s)
	if err != nil {
		return nil, err
	}

	if ownerUserID != "" && s.OwnerUserID == "" {
		_, err = r.col.UpdateOne(ctx,
			bson.M{"video_id": videoID, "language": language, "owner_user_id": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"owner_user_id": ownerUserID}},
		)
		if err != nil {
			return nil, err
		}
		s.OwnerUserID = ownerUserID
	}

	return &s, nil
}

func (r *SummaryRepo) ListByOwner(ctx context.Context, ownerUserID string, limit, skip int64) ([]*models.Summary, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"owner_user_id": ownerUserID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit).SetSkip(skip),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Summary
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
