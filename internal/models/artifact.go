package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

type EvidenceArtifact struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID       primitive.ObjectID `json:"session_id" bson:"session_id" validate:"required"`
	OwnerID         primitive.ObjectID `json:"owner_id" bson:"owner_id" validate:"required"`
	Kind            MediaKind          `json:"kind" bson:"kind" validate:"required"`
	LocalPath       string             `json:"local_path" bson:"local_path"`
	RemoteURL       string             `json:"remote_url" bson:"remote_url"`
	StorageKey      string             `json:"storage_key" bson:"storage_key"`
	SizeBytes       int64              `json:"size_bytes" bson:"size_bytes"`
	DurationSeconds int64              `json:"duration_seconds" bson:"duration_seconds"`
	RecordedAt      time.Time          `json:"recorded_at" bson:"recorded_at"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}
