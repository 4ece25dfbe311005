package interfaces

import (
	"context"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.SOSSession) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSSession, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSSession, int64, error)
	GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*models.SOSSession, error)
	MarkInactive(ctx context.Context, ownerID, sessionID primitive.ObjectID, deactivatedAt time.Time, durationSeconds int64) error
	AddContactedBy(ctx context.Context, sessionID primitive.ObjectID, channel string) error
	UpdateAddress(ctx context.Context, sessionID primitive.ObjectID, address string) error
}
