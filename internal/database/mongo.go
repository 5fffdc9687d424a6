package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewMongoDatabase(uri, dbName string) (*mongo.Database, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(25).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	closeFn := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = client.Disconnect(shutdownCtx)
	}

	return client.Database(dbName), closeFn, nil
}

// EnsureIndexes creates the uniqueness constraints the cache depends on.
// Upsert semantics are only safe because these exist.
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	videos := db.Collection("videos")
	if _, err := videos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "video_id", Value: 1}},
		Options: options.Index().SetName("uniq_video_id").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("videos index: %w", err)
	}

	transcripts := db.Collection("transcripts")
	if _, err := transcripts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "video_id", Value: 1}, {Key: "language", Value: 1}},
		Options: options.Index().SetName("uniq_video_language").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("transcripts index: %w", err)
	}

	summaries := db.Collection("summaries")
	if _, err := summaries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "video_id", Value: 1}, {Key: "language", Value: 1}},
		Options: options.Index().SetName("uniq_video_language").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("summaries index: %w", err)
	}

	translations := db.Collection("translations")
	if _, err := translations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transcript_id", Value: 1}, {Key: "language", Value: 1}},
		Options: options.Index().SetName("uniq_transcript_language").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("translations index: %w", err)
	}

	apiKeys := db.Collection("api_keys")
	if _, err := apiKeys.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetName("uniq_key").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "owner_user_id", Value: 1}},
			Options: options.Index().SetName("by_owner"),
		},
	}); err != nil {
		return fmt.Errorf("api_keys indexes: %w", err)
	}

	return nil
}
