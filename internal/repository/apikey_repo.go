package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vidsum-backend/internal/models"
)

var ErrKeyNotFound = errors.New("api key not found")

type APIKeyRepo struct {
	col *mongo.Collection
}

func NewAPIKeyRepo(db *mongo.Database) *APIKeyRepo {
	return &APIKeyRepo{col: db.Collection("api_keys")}
}

// GenerateKey returns an opaque token for a new API key.
func GenerateKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (r *APIKeyRepo) Create(ctx context.Context, ownerUserID, name string, expiresInDays int) (*models.APIKey, error) {
	now := time.Now().UTC()
	key := &models.APIKey{
		OwnerUserID: ownerUserID,
		Key:         GenerateKey(),
		Name:        name,
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, expiresInDays),
		IsActive:    true,
	}

	res, err := r.col.InsertOne(ctx, key)
	if err != nil {
		return nil, err
	}
	key.ID = res.InsertedID.(primitive.ObjectID)
	return key, nil
}

// Validate returns the key document when the token is active and unexpired,
// updating last_used as a side effect. Returns (nil, nil) for unknown,
// revoked, or expired tokens.
func (r *APIKeyRepo) Validate(ctx context.Context, token string) (*models.APIKey, error) {
	var k models.APIKey
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{
			"key":        token,
			"is_active":  true,
			"expires_at": bson.M{"$gt": time.Now().UTC()},
		},
		bson.M{"$set": bson.M{"usage.last_used": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&k)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// IncrementUsage bumps the per-key counters for one request. processType is
// "summarize", "translate", or anything else (counted only in the total).
func (r *APIKeyRepo) IncrementUsage(ctx context.Context, id primitive.ObjectID, processType string) error {
	inc := bson.M{"usage.total_requests": 1}
	switch processType {
	case "summarize":
		inc["usage.summarize_requests"] = 1
	case "translate":
		inc["usage.translate_requests"] = 1
	}
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$inc": inc})
	return err
}

func (r *APIKeyRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*models.APIKey, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"owner_user_id": ownerUserID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.APIKey
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Revoke is a soft delete; the document stays for usage history.
func (r *APIKeyRepo) Revoke(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrKeyNotFound
	}
	return nil
}
