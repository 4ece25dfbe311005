package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string
type TriggerMethod string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusInactive SessionStatus = "inactive"

	TriggerMethodManual      TriggerMethod = "manual"
	TriggerMethodShake       TriggerMethod = "shake"
	TriggerMethodPowerButton TriggerMethod = "power_button"
)

type SOSSession struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID         primitive.ObjectID `json:"owner_id" bson:"owner_id" validate:"required"`
	Status          SessionStatus      `json:"status" bson:"status" default:"active"`
	TriggerMethod   TriggerMethod      `json:"trigger_method" bson:"trigger_method" validate:"required"`
	Location        *Location          `json:"location" bson:"location"`
	Address         string             `json:"address" bson:"address"`
	ContactedBy     []string           `json:"contacted_by" bson:"contacted_by"`
	IncidentNumber  string             `json:"incident_number" bson:"incident_number"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
	DeactivatedAt   *time.Time         `json:"deactivated_at" bson:"deactivated_at"`
	DurationSeconds int64              `json:"duration_seconds" bson:"duration_seconds"`
}

func (s *SOSSession) IsActive() bool {
	return s.Status == SessionStatusActive
}
