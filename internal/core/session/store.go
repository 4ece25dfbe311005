package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sosguard/internal/core/capture"
	"sosguard/internal/models"
	"sosguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Persistence is the durable-storage collaborator the store writes through.
type Persistence interface {
	MarkInactive(ctx context.Context, ownerID, sessionID primitive.ObjectID, deactivatedAt time.Time, durationSeconds int64) error
	GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*models.SOSSession, error)
}

// Capture is the slice of the recording coordinator deactivation needs.
type Capture interface {
	StopCaptureSafely(ctx context.Context)
}

// Store is the process-wide SOS state machine: Inactive -> Active -> Inactive, one
// cycle per session, never two Active sessions at once.
type Store struct {
	persistence  Persistence
	capture      Capture
	state        *capture.State
	drainTimeout time.Duration
	log          *logger.Logger

	mu          sync.Mutex
	active      bool
	sessionID   primitive.ObjectID
	activatedAt time.Time
}

func NewStore(persistence Persistence, cap Capture, state *capture.State, drainTimeout time.Duration, log *logger.Logger) *Store {
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	return &Store{
		persistence:  persistence,
		capture:      cap,
		state:        state,
		drainTimeout: drainTimeout,
		log:          log,
	}
}

// Activate transitions Inactive to Active. When a session is already active the
// call is a no-op returning false, so duplicate triggers (two rapid shake events)
// cannot stack sessions.
func (s *Store) Activate(sessionID primitive.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.log.WithSessionID(sessionID).Debug("Session already active, ignoring activation")
		return false
	}
	s.active = true
	s.sessionID = sessionID
	s.activatedAt = time.Now()
	return true
}

// Active returns the current session id and whether one is active.
func (s *Store) Active() (primitive.ObjectID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.active
}

// DeactivateSafely drains the evidence pipeline and closes the session:
// stop recording, wait for uploads with a bounded ceiling, persist the
// deactivation, and reset local state. The reset runs even when the durable write
// fails; the write error is then surfaced to the caller with local state already
// consistent.
func (s *Store) DeactivateSafely(ctx context.Context, ownerID primitive.ObjectID) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	sessionID := s.sessionID
	activatedAt := s.activatedAt
	s.mu.Unlock()

	if s.state.IsRecording() {
		s.capture.StopCaptureSafely(ctx)
	}

	if s.state.IsUploading() {
		select {
		case <-s.state.UploadsDone():
		case <-time.After(s.drainTimeout):
			s.log.WithSessionID(sessionID).
				Warnf("Upload drain exceeded %s, proceeding with deactivation", s.drainTimeout)
		}
	}

	// Local state resets no matter what the durable write does.
	defer func() {
		s.mu.Lock()
		s.active = false
		s.sessionID = primitive.NilObjectID
		s.activatedAt = time.Time{}
		s.mu.Unlock()
		s.state.Reset()
	}()

	deactivatedAt := time.Now()
	duration := int64(deactivatedAt.Sub(activatedAt).Round(time.Second) / time.Second)
	if err := s.persistence.MarkInactive(ctx, ownerID, sessionID, deactivatedAt, duration); err != nil {
		return fmt.Errorf("failed to persist session deactivation: %w", err)
	}

	s.log.WithSessionID(sessionID).
		WithField("duration_seconds", duration).
		Info("SOS session deactivated")
	return nil
}

// CheckForActiveSessionOnStart recovers a session that storage still reports Active
// after a crash lost the in-memory state. When several qualify, the most recently
// created one wins; the others are left untouched.
func (s *Store) CheckForActiveSessionOnStart(ctx context.Context, ownerID primitive.ObjectID) (*models.SOSSession, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	sessions, err := s.persistence.GetActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	chosen := sessions[0]

	s.mu.Lock()
	s.active = true
	s.sessionID = chosen.ID
	s.activatedAt = chosen.CreatedAt
	s.mu.Unlock()

	s.log.WithSessionID(chosen.ID).WithUserID(ownerID).
		Warn("Recovered active SOS session from a previous run")
	return chosen, nil
}
