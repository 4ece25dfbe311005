package interfaces

import (
	"context"

	"sosguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ArtifactRepository interface {
	Create(ctx context.Context, artifact *models.EvidenceArtifact) error
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error)
}
