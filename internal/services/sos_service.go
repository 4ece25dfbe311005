package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sosguard/internal/config"
	"sosguard/internal/core/capture"
	"sosguard/internal/core/session"
	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"
	"sosguard/internal/utils"
	"sosguard/pkg/cache"
	"sosguard/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// triggerDebounceWindow suppresses duplicate trigger requests; a shake burst
// or a double-tapped panic button produces one session, not several.
const triggerDebounceWindow = 3 * time.Second

type SOSService interface {
	Trigger(ctx context.Context, ownerID primitive.ObjectID, method models.TriggerMethod, location *models.Location) (*models.SOSSession, error)
	Resolve(ctx context.Context, ownerID primitive.ObjectID) error
	ActiveSession(ctx context.Context, ownerID primitive.ObjectID) (*models.SOSSession, error)
	History(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSSession, int64, error)
	SessionArtifacts(ctx context.Context, ownerID, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error)
	OwnerArtifacts(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error)
	RecoverOnStart(ctx context.Context, ownerID primitive.ObjectID) (*models.SOSSession, error)
}

type sosService struct {
	sessionRepo  interfaces.SessionRepository
	artifactRepo interfaces.ArtifactRepository
	store        *session.Store
	coordinator  *capture.Coordinator
	notifier     NotificationService
	redis        *cache.RedisCache
	recording    *config.RecordingConfig
	log          *logger.Logger
}

func NewSOSService(
	sessionRepo interfaces.SessionRepository,
	artifactRepo interfaces.ArtifactRepository,
	store *session.Store,
	coordinator *capture.Coordinator,
	notifier NotificationService,
	redis *cache.RedisCache,
	recording *config.RecordingConfig,
	log *logger.Logger,
) SOSService {
	return &sosService{
		sessionRepo:  sessionRepo,
		artifactRepo: artifactRepo,
		store:        store,
		coordinator:  coordinator,
		notifier:     notifier,
		redis:        redis,
		recording:    recording,
		log:          log,
	}
}

// Trigger opens an SOS session and kicks off the evidence pipeline and the
// contact fan-out. Triggering while a session is already active returns the
// active session unchanged.
func (s *sosService) Trigger(ctx context.Context, ownerID primitive.ObjectID, method models.TriggerMethod, location *models.Location) (*models.SOSSession, error) {
	if existing, active := s.store.Active(); active {
		return s.sessionRepo.GetByID(ctx, existing)
	}

	if s.redis != nil {
		key := fmt.Sprintf("sos:trigger:%s", ownerID.Hex())
		won, err := s.redis.SetNX(ctx, key, string(method), triggerDebounceWindow)
		if err != nil {
			s.log.WithUserID(ownerID).WithError(err).Warn("Trigger debounce check failed, proceeding")
		} else if !won {
			s.log.WithUserID(ownerID).WithField("method", method).
				Debug("Duplicate trigger inside debounce window, ignoring")
			return s.ActiveSession(ctx, ownerID)
		}
	}

	now := time.Now()
	sess := &models.SOSSession{
		ID:             primitive.NewObjectID(),
		OwnerID:        ownerID,
		Status:         models.SessionStatusActive,
		TriggerMethod:  method,
		Location:       location,
		IncidentNumber: newIncidentNumber(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create SOS session: %w", err)
	}

	if !s.store.Activate(sess.ID) {
		// Lost the race against another trigger; the winner's session stands.
		activeID, _ := s.store.Active()
		s.log.WithUserID(ownerID).WithSessionID(sess.ID).
			Debug("Concurrent trigger won activation, adopting its session")
		return s.sessionRepo.GetByID(ctx, activeID)
	}

	s.log.LogSessionEvent(sess.ID, "triggered", map[string]interface{}{
		"method":          method,
		"incident_number": sess.IncidentNumber,
	})

	// Capture and fan-out outlive the HTTP request that triggered them.
	bg := context.WithoutCancel(ctx)
	s.coordinator.StartCapture(bg, sess.ID, ownerID, s.recording.MaxDuration)
	go func() {
		if err := s.notifier.NotifyContacts(bg, sess); err != nil {
			s.log.WithSessionID(sess.ID).WithError(err).Error("Contact fan-out failed")
		}
	}()

	return sess, nil
}

// Resolve closes the active session. The store drains the evidence pipeline
// before the durable write, so resolving never strands an in-flight upload
// beyond the configured ceiling.
func (s *sosService) Resolve(ctx context.Context, ownerID primitive.ObjectID) error {
	sessionID, active := s.store.Active()
	if !active {
		return nil
	}

	if err := s.store.DeactivateSafely(ctx, ownerID); err != nil {
		return err
	}

	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		s.log.WithSessionID(sessionID).WithError(err).
			Warn("Session resolved but reload for notification failed")
		return nil
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.notifier.NotifyResolved(bg, sess); err != nil {
			s.log.WithSessionID(sessionID).WithError(err).Error("Resolve fan-out failed")
		}
	}()

	return nil
}

func (s *sosService) ActiveSession(ctx context.Context, ownerID primitive.ObjectID) (*models.SOSSession, error) {
	sessionID, active := s.store.Active()
	if !active {
		return nil, nil
	}
	return s.sessionRepo.GetByID(ctx, sessionID)
}

func (s *sosService) History(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSSession, int64, error) {
	return s.sessionRepo.GetByOwnerID(ctx, ownerID, params)
}

func (s *sosService) SessionArtifacts(ctx context.Context, ownerID, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.OwnerID != ownerID {
		return nil, fmt.Errorf("session does not belong to requester")
	}

	return s.artifactRepo.GetBySessionID(ctx, sessionID)
}

// OwnerArtifacts lists every piece of evidence the user has across sessions,
// the view an export or legal request works from.
func (s *sosService) OwnerArtifacts(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return s.artifactRepo.GetByOwnerID(ctx, ownerID)
}

// RecoverOnStart re-adopts a session that durable storage still reports active
// after the process died mid-incident.
func (s *sosService) RecoverOnStart(ctx context.Context, ownerID primitive.ObjectID) (*models.SOSSession, error) {
	return s.store.CheckForActiveSessionOnStart(ctx, ownerID)
}

func newIncidentNumber() string {
	return "SOS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
