package mongodb

import (
	"context"
	"fmt"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"
	"sosguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CacheService is the cache-aside dependency shared by the repositories. Nil is
// allowed; caching is then skipped.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type sessionRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewSessionRepository(db *mongo.Database, cache CacheService) interfaces.SessionRepository {
	return &sessionRepository{
		collection: db.Collection("sos_sessions"),
		cache:      cache,
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.SOSSession) error {
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if session.Status == models.SessionStatusActive {
		r.cacheActiveSession(ctx, session)
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSSession, error) {
	var session models.SOSSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSSession, int64, error) {
	filter := bson.M{"owner_id": ownerID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	opts := params.GetSortOptions()
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.SOSSession
	for cursor.Next(ctx) {
		var session models.SOSSession
		if err := cursor.Decode(&session); err != nil {
			return nil, 0, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, total, nil
}

func (r *sessionRepository) GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*models.SOSSession, error) {
	if r.cache != nil {
		var cached models.SOSSession
		cacheKey := fmt.Sprintf("sos:active:%s", ownerID.Hex())
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil && cached.Status == models.SessionStatusActive {
			return []*models.SOSSession{&cached}, nil
		}
	}

	filter := bson.M{
		"owner_id": ownerID,
		"status":   models.SessionStatusActive,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.SOSSession
	for cursor.Next(ctx) {
		var session models.SOSSession
		if err := cursor.Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

func (r *sessionRepository) MarkInactive(ctx context.Context, ownerID, sessionID primitive.ObjectID, deactivatedAt time.Time, durationSeconds int64) error {
	updates := bson.M{
		"status":           models.SessionStatusInactive,
		"deactivated_at":   deactivatedAt,
		"duration_seconds": durationSeconds,
		"updated_at":       time.Now(),
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": sessionID, "owner_id": ownerID},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to mark session inactive: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("session not found")
	}

	r.invalidateActiveSessionCache(ctx, ownerID.Hex())

	return nil
}

func (r *sessionRepository) AddContactedBy(ctx context.Context, sessionID primitive.ObjectID, channel string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$addToSet": bson.M{"contacted_by": channel},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record contact channel: %w", err)
	}
	return nil
}

func (r *sessionRepository) UpdateAddress(ctx context.Context, sessionID primitive.ObjectID, address string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"address": address, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update session address: %w", err)
	}
	return nil
}

// Cache operations
func (r *sessionRepository) cacheActiveSession(ctx context.Context, session *models.SOSSession) {
	if r.cache != nil && session.Status == models.SessionStatusActive {
		cacheKey := fmt.Sprintf("sos:active:%s", session.OwnerID.Hex())
		r.cache.Set(ctx, cacheKey, session, 5*time.Minute)
	}
}

func (r *sessionRepository) invalidateActiveSessionCache(ctx context.Context, ownerID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("sos:active:%s", ownerID)
		r.cache.Delete(ctx, cacheKey)
	}
}
