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

type VideoRepo struct {
	col *mongo.Collection
}

func NewVideoRepo(db *mongo.Database) *VideoRepo {
	return &VideoRepo{col: db.Collection("videos")}
}

// Get returns the cached video record, bumping its access stats on a hit.
func (r *VideoRepo) Get(ctx context.Context, videoID string) (*models.Video, error) {
	var v models.Video
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Upsert creates or refreshes the record for a video. first_processed is set
// only on insert; access_count is an atomic increment.
func (r *VideoRepo) Upsert(ctx context.Context, videoID, title, author string, lengthSeconds int, thumbnailURL string) (*models.Video, error) {
	now := time.Now().UTC()
	var v models.Video
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"video_id": videoID},
		bson.M{
			"$set": bson.M{
				"title":          title,
				"author":         author,
				"length_seconds": lengthSeconds,
				"thumbnail_url":  thumbnailURL,
				"last_accessed":  now,
			},
			"$setOnInsert": bson.M{"first_processed": now},
			"$inc":         bson.M{"access_count": 1},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
