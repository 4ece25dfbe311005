package mongodb

import (
	"context"
	"fmt"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type artifactRepository struct {
	collection *mongo.Collection
}

func NewArtifactRepository(db *mongo.Database) interfaces.ArtifactRepository {
	return &artifactRepository{
		collection: db.Collection("evidence_artifacts"),
	}
}

func (r *artifactRepository) Create(ctx context.Context, artifact *models.EvidenceArtifact) error {
	artifact.ID = primitive.NewObjectID()
	artifact.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, artifact)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	return nil
}

func (r *artifactRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return r.find(ctx, bson.M{"session_id": sessionID})
}

func (r *artifactRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *artifactRepository) find(ctx context.Context, filter bson.M) ([]*models.EvidenceArtifact, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find artifacts: %w", err)
	}
	defer cursor.Close(ctx)

	var artifacts []*models.EvidenceArtifact
	for cursor.Next(ctx) {
		var artifact models.EvidenceArtifact
		if err := cursor.Decode(&artifact); err != nil {
			return nil, fmt.Errorf("failed to decode artifact: %w", err)
		}
		artifacts = append(artifacts, &artifact)
	}

	return artifacts, nil
}
