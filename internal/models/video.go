package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Video is the cached metadata record for a processed YouTube video.
// One document per video_id; upserts enforce uniqueness.
type Video struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID        string             `bson:"video_id" json:"video_id"`
	Title          string             `bson:"title" json:"title"`
	Author         string             `bson:"author" json:"author"`
	LengthSeconds  int                `bson:"length_seconds" json:"length_seconds"`
	ThumbnailURL   string             `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	AccessCount    int64              `bson:"access_count" json:"access_count"`
	FirstProcessed time.Time          `bson:"first_processed" json:"first_processed"`
	LastAccessed   time.Time          `bson:"last_accessed" json:"last_accessed"`
}

type Transcript struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID      string             `bson:"video_id" json:"video_id"`
	Language     string             `bson:"language" json:"language"`
	Text         string             `bson:"transcript" json:"transcript"`
	CharCount    int                `bson:"char_count" json:"char_count"`
	AccessCount  int64              `bson:"access_count" json:"access_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
}

// Summary is stored separately from Transcript so regenerating one never
// touches the other. OwnerUserID is attribution only: first writer wins.
type Summary struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID      string             `bson:"video_id" json:"video_id"`
	Language     string             `bson:"language" json:"language"`
	Text         string             `bson:"summary" json:"summary"`
	OwnerUserID  string             `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	CharCount    int                `bson:"char_count" json:"char_count"`
	AccessCount  int64              `bson:"access_count" json:"access_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
}

// Translation is a derived artifact of exactly one Transcript.
type Translation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TranscriptID primitive.ObjectID `bson:"transcript_id" json:"transcript_id"`
	Language     string             `bson:"language" json:"language"`
	Text         string             `bson:"translation" json:"translation"`
	CharCount    int                `bson:"char_count" json:"char_count"`
	AccessCount  int64              `bson:"access_count" json:"access_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
}
