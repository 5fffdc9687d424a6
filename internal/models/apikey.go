package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type APIKeyUsage struct {
	TotalRequests     int64      `bson:"total_requests" json:"total_requests"`
	SummarizeRequests int64      `bson:"summarize_requests" json:"summarize_requests"`
	TranslateRequests int64      `bson:"translate_requests" json:"translate_requests"`
	LastUsed          *time.Time `bson:"last_used,omitempty" json:"last_used,omitempty"`
}

// APIKey grants access to the API. Revocation flips IsActive instead of
// deleting the document so usage history survives.
type APIKey struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerUserID string             `bson:"owner_user_id" json:"owner_user_id"`
	Key         string             `bson:"key" json:"key,omitempty"`
	Name        string             `bson:"name" json:"name"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	Usage       APIKeyUsage        `bson:"usage" json:"usage"`
}

func (k *APIKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
