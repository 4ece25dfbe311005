package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmergencyContact struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID     primitive.ObjectID `json:"owner_id" bson:"owner_id" validate:"required"`
	Name        string             `json:"name" bson:"name" validate:"required"`
	PhoneNumber string             `json:"phone_number" bson:"phone_number" validate:"required"`
	Relation    string             `json:"relation" bson:"relation"`
	PushToken   string             `json:"push_token" bson:"push_token"`
	Platform    string             `json:"platform" bson:"platform"` // ios, android
	WhatsApp    bool               `json:"whatsapp" bson:"whatsapp"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}
