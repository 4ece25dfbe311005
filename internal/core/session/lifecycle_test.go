package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosguard/internal/core/capture"
	"sosguard/internal/core/upload"
	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/pkg/logger"
	"sosguard/pkg/storage"
)

type stubDevice struct {
	kind     models.MediaKind
	dir      string
	acquired chan struct{}
}

func (d *stubDevice) Kind() models.MediaKind { return d.kind }

func (d *stubDevice) Acquire(ctx context.Context) (devices.Capture, error) {
	if d.acquired != nil {
		close(d.acquired)
	}
	return &stubCapture{kind: d.kind, dir: d.dir}, nil
}

type stubCapture struct {
	kind models.MediaKind
	dir  string
}

func (c *stubCapture) Stop(ctx context.Context) (*devices.Clip, error) {
	path := filepath.Join(c.dir, fmt.Sprintf("%s.bin", c.kind))
	if err := os.WriteFile(path, []byte(string(c.kind)+" bytes"), 0o600); err != nil {
		return nil, err
	}
	return &devices.Clip{Path: path, Duration: 2 * time.Second, RecordedAt: time.Now()}, nil
}

type fakeBlobStore struct{}

func (b *fakeBlobStore) Upload(ctx context.Context, request *storage.UploadRequest) (*storage.UploadResponse, error) {
	return &storage.UploadResponse{
		Key:  request.Key,
		URL:  "https://evidence.test/" + request.Key,
		Size: request.Size,
	}, nil
}

type fakeArtifactStore struct {
	mu      sync.Mutex
	created []*models.EvidenceArtifact
}

func (r *fakeArtifactStore) Create(ctx context.Context, artifact *models.EvidenceArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, artifact)
	return nil
}

func (r *fakeArtifactStore) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return nil, nil
}

func (r *fakeArtifactStore) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EvidenceArtifact, error) {
	return nil, nil
}

func (r *fakeArtifactStore) kinds() map[models.MediaKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.MediaKind]int)
	for _, a := range r.created {
		counts[a.Kind]++
	}
	return counts
}

// stuckUploader never finishes, standing in for a dead network.
type stuckUploader struct {
	release chan struct{}
}

func (u *stuckUploader) Upload(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifact *upload.LocalArtifact) (*models.EvidenceArtifact, error) {
	<-u.release
	return nil, nil
}

func (u *stuckUploader) UploadBatch(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifacts []*upload.LocalArtifact) []*models.EvidenceArtifact {
	<-u.release
	return nil
}

func TestDeactivateDrainTimeoutIsBounded(t *testing.T) {
	uploader := &stuckUploader{release: make(chan struct{})}
	t.Cleanup(func() { close(uploader.release) })

	dir := t.TempDir()
	state := capture.NewState()
	coord := capture.NewCoordinator(
		&stubDevice{kind: models.MediaKindAudio, dir: dir},
		&stubDevice{kind: models.MediaKindVideo, dir: dir},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)
	persistence := &fakePersistence{}
	drainTimeout := 150 * time.Millisecond
	store := NewStore(persistence, coord, state, drainTimeout, logger.NewNop())

	sessionID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	require.True(t, store.Activate(sessionID))
	coord.StartCapture(context.Background(), sessionID, ownerID, 10*time.Millisecond)

	require.Eventually(t, state.IsUploading, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, store.DeactivateSafely(context.Background(), ownerID))
	elapsed := time.Since(start)

	// The drain waits out the ceiling and no longer, then deactivation proceeds.
	require.GreaterOrEqual(t, elapsed, drainTimeout)
	require.Less(t, elapsed, 2*time.Second)

	require.Equal(t, []primitive.ObjectID{sessionID}, persistence.markedIDs())
	_, active := store.Active()
	require.False(t, active)
	require.False(t, state.IsUploading(), "local state resets even with the upload still stuck")
}

func TestFullLifecycleUploadsEvidenceAndClosesSession(t *testing.T) {
	dir := t.TempDir()
	audioAcquired := make(chan struct{})
	videoAcquired := make(chan struct{})

	blobs := &fakeBlobStore{}
	artifacts := &fakeArtifactStore{}
	uploader := upload.NewUploader(blobs, artifacts, logger.NewNop())
	state := capture.NewState()
	coord := capture.NewCoordinator(
		&stubDevice{kind: models.MediaKindAudio, dir: dir, acquired: audioAcquired},
		&stubDevice{kind: models.MediaKindVideo, dir: dir, acquired: videoAcquired},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)
	persistence := &fakePersistence{}
	store := NewStore(persistence, coord, state, 2*time.Second, logger.NewNop())

	sessionID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	require.True(t, store.Activate(sessionID))
	coord.StartCapture(context.Background(), sessionID, ownerID, time.Minute)
	<-audioAcquired
	<-videoAcquired

	require.NoError(t, store.DeactivateSafely(context.Background(), ownerID))

	counts := artifacts.kinds()
	require.Equal(t, 1, counts[models.MediaKindAudio])
	require.Equal(t, 1, counts[models.MediaKindVideo])

	require.Equal(t, []primitive.ObjectID{sessionID}, persistence.markedIDs(), "deactivation persists exactly once")
	require.Len(t, persistence.durations, 1)
	require.GreaterOrEqual(t, persistence.durations[0], int64(0))
	require.LessOrEqual(t, persistence.durations[0], int64(1))

	_, active := store.Active()
	require.False(t, active)
	require.False(t, state.IsRecording())
	require.False(t, state.IsUploading())
}
