package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosguard/internal/core/capture"
	"sosguard/internal/models"
	"sosguard/pkg/logger"
)

type fakePersistence struct {
	mu        sync.Mutex
	markErr   error
	marked    []primitive.ObjectID
	durations []int64
	active    []*models.SOSSession
	activeErr error
	queried   int
}

func (p *fakePersistence) MarkInactive(ctx context.Context, ownerID, sessionID primitive.ObjectID, deactivatedAt time.Time, durationSeconds int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.markErr != nil {
		return p.markErr
	}
	p.marked = append(p.marked, sessionID)
	p.durations = append(p.durations, durationSeconds)
	return nil
}

func (p *fakePersistence) GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*models.SOSSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queried++
	return p.active, p.activeErr
}

func (p *fakePersistence) markedIDs() []primitive.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marked
}

type fakeCapture struct {
	mu      sync.Mutex
	stopped int
}

func (c *fakeCapture) StopCaptureSafely(ctx context.Context) {
	c.mu.Lock()
	c.stopped++
	c.mu.Unlock()
}

func newTestStore(persistence *fakePersistence) *Store {
	return NewStore(persistence, &fakeCapture{}, capture.NewState(), 100*time.Millisecond, logger.NewNop())
}

func TestActivateOnlyOnce(t *testing.T) {
	store := newTestStore(&fakePersistence{})
	first := primitive.NewObjectID()

	require.True(t, store.Activate(first))
	require.False(t, store.Activate(primitive.NewObjectID()), "a second session cannot stack on an active one")

	id, active := store.Active()
	require.True(t, active)
	require.Equal(t, first, id)
}

func TestDeactivateWithoutActiveSession(t *testing.T) {
	persistence := &fakePersistence{}
	store := newTestStore(persistence)

	require.NoError(t, store.DeactivateSafely(context.Background(), primitive.NewObjectID()))
	require.Empty(t, persistence.markedIDs())
}

func TestDeactivatePersistsAndResets(t *testing.T) {
	persistence := &fakePersistence{}
	store := newTestStore(persistence)
	sessionID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	require.True(t, store.Activate(sessionID))
	require.NoError(t, store.DeactivateSafely(context.Background(), ownerID))

	require.Equal(t, []primitive.ObjectID{sessionID}, persistence.markedIDs())
	_, active := store.Active()
	require.False(t, active)
}

func TestDeactivateResetsEvenWhenPersistFails(t *testing.T) {
	markErr := errors.New("mongo down")
	persistence := &fakePersistence{markErr: markErr}
	store := newTestStore(persistence)

	require.True(t, store.Activate(primitive.NewObjectID()))
	err := store.DeactivateSafely(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, markErr)

	// Local state is consistent again; a fresh trigger can proceed.
	_, active := store.Active()
	require.False(t, active)
	require.True(t, store.Activate(primitive.NewObjectID()))
}

func TestRecoveryPicksMostRecentSession(t *testing.T) {
	older := &models.SOSSession{
		ID:        primitive.NewObjectID(),
		Status:    models.SessionStatusActive,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.SOSSession{
		ID:        primitive.NewObjectID(),
		Status:    models.SessionStatusActive,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	persistence := &fakePersistence{active: []*models.SOSSession{older, newer}}
	store := newTestStore(persistence)

	recovered, err := store.CheckForActiveSessionOnStart(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	require.Equal(t, newer.ID, recovered.ID)

	id, active := store.Active()
	require.True(t, active)
	require.Equal(t, newer.ID, id)
}

func TestRecoverySkippedWhileActive(t *testing.T) {
	persistence := &fakePersistence{active: []*models.SOSSession{{ID: primitive.NewObjectID()}}}
	store := newTestStore(persistence)

	require.True(t, store.Activate(primitive.NewObjectID()))
	recovered, err := store.CheckForActiveSessionOnStart(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	require.Nil(t, recovered)
	require.Zero(t, persistence.queried)
}

func TestRecoveryWithNothingToRecover(t *testing.T) {
	store := newTestStore(&fakePersistence{})

	recovered, err := store.CheckForActiveSessionOnStart(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	require.Nil(t, recovered)

	_, active := store.Active()
	require.False(t, active)
}

func TestRecoveryQueryFailure(t *testing.T) {
	queryErr := errors.New("mongo down")
	store := newTestStore(&fakePersistence{activeErr: queryErr})

	_, err := store.CheckForActiveSessionOnStart(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, queryErr)

	_, active := store.Active()
	require.False(t, active)
}
