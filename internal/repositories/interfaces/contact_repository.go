package interfaces

import (
	"context"

	"sosguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactRepository interface {
	Create(ctx context.Context, contact *models.EmergencyContact) error
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EmergencyContact, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, ownerID, id primitive.ObjectID) error
}
