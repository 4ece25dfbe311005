package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosguard/internal/core/upload"
	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/pkg/logger"
)

type fakeUploader struct {
	mu       sync.Mutex
	singles  []*upload.LocalArtifact
	batches  [][]*upload.LocalArtifact
	uploaded chan models.MediaKind
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(chan models.MediaKind, 8)}
}

func (u *fakeUploader) Upload(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifact *upload.LocalArtifact) (*models.EvidenceArtifact, error) {
	u.mu.Lock()
	u.singles = append(u.singles, artifact)
	u.mu.Unlock()
	u.uploaded <- artifact.Kind
	return &models.EvidenceArtifact{Kind: artifact.Kind, SessionID: sessionID, OwnerID: ownerID}, nil
}

func (u *fakeUploader) UploadBatch(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifacts []*upload.LocalArtifact) []*models.EvidenceArtifact {
	u.mu.Lock()
	u.batches = append(u.batches, artifacts)
	u.mu.Unlock()
	docs := make([]*models.EvidenceArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		u.uploaded <- a.Kind
		docs = append(docs, &models.EvidenceArtifact{Kind: a.Kind, SessionID: sessionID, OwnerID: ownerID})
	}
	return docs
}

func (u *fakeUploader) awaitKind(t *testing.T) models.MediaKind {
	t.Helper()
	select {
	case kind := <-u.uploaded:
		return kind
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an upload")
		return ""
	}
}

func (u *fakeUploader) batchCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.batches)
}

func (u *fakeUploader) singleCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.singles)
}

// blockingUploader parks every batch until released, so tests can observe the
// window between dispatch and completion.
type blockingUploader struct {
	release chan struct{}
}

func (u *blockingUploader) Upload(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifact *upload.LocalArtifact) (*models.EvidenceArtifact, error) {
	<-u.release
	return &models.EvidenceArtifact{Kind: artifact.Kind}, nil
}

func (u *blockingUploader) UploadBatch(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifacts []*upload.LocalArtifact) []*models.EvidenceArtifact {
	<-u.release
	return nil
}

type fakeCapture struct {
	kind     models.MediaKind
	stopGate chan struct{}
}

func (c *fakeCapture) Stop(ctx context.Context) (*devices.Clip, error) {
	if c.stopGate != nil {
		<-c.stopGate
	}
	return &devices.Clip{
		Path:       "/tmp/" + string(c.kind) + ".bin",
		Duration:   time.Second,
		RecordedAt: time.Now(),
	}, nil
}

type fakeDevice struct {
	kind       models.MediaKind
	acquireErr error
	stopGate   chan struct{}
	acquired   chan struct{}
}

func (d *fakeDevice) Kind() models.MediaKind { return d.kind }

func (d *fakeDevice) Acquire(ctx context.Context) (devices.Capture, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	if d.acquired != nil {
		close(d.acquired)
	}
	return &fakeCapture{kind: d.kind, stopGate: d.stopGate}, nil
}

func waitIdle(t *testing.T, state *State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !state.IsRecording() && !state.IsUploading()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBothDevicesUploadOneBatch(t *testing.T) {
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio},
		&fakeDevice{kind: models.MediaKindVideo},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), 20*time.Millisecond)
	require.True(t, coord.IsCapturing())

	kinds := map[models.MediaKind]bool{
		uploader.awaitKind(t): true,
		uploader.awaitKind(t): true,
	}
	require.True(t, kinds[models.MediaKindAudio])
	require.True(t, kinds[models.MediaKindVideo])

	waitIdle(t, state)
	require.Equal(t, 1, uploader.batchCount())
	require.Zero(t, uploader.singleCount())
	require.False(t, coord.IsCapturing())
}

func TestAudioFailureLeavesVideoRunning(t *testing.T) {
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio, acquireErr: devices.ErrDeviceUnavailable},
		&fakeDevice{kind: models.MediaKindVideo},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), 20*time.Millisecond)

	require.Equal(t, models.MediaKindVideo, uploader.awaitKind(t))
	waitIdle(t, state)
	require.Equal(t, 1, uploader.batchCount())
}

func TestVideoFailureLeavesAudioRunning(t *testing.T) {
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio},
		&fakeDevice{kind: models.MediaKindVideo, acquireErr: devices.ErrDeviceUnavailable},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), 20*time.Millisecond)

	require.Equal(t, models.MediaKindAudio, uploader.awaitKind(t))
	waitIdle(t, state)
}

func TestBothDevicesFailingProducesNoArtifacts(t *testing.T) {
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio, acquireErr: devices.ErrDeviceUnavailable},
		&fakeDevice{kind: models.MediaKindVideo, acquireErr: devices.ErrDeviceUnavailable},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), 20*time.Millisecond)

	waitIdle(t, state)
	require.False(t, coord.IsCapturing())
	require.Zero(t, uploader.batchCount())
	require.Zero(t, uploader.singleCount())
}

func TestLateVideoUploadedOutOfBand(t *testing.T) {
	videoGate := make(chan struct{})
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio},
		&fakeDevice{kind: models.MediaKindVideo, stopGate: videoGate},
		uploader, state, 30*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), 10*time.Millisecond)

	// The primary batch goes out with audio only while video teardown drags on.
	require.Equal(t, models.MediaKindAudio, uploader.awaitKind(t))
	require.Equal(t, 1, uploader.batchCount())

	close(videoGate)
	require.Equal(t, models.MediaKindVideo, uploader.awaitKind(t))

	waitIdle(t, state)
	require.Equal(t, 1, uploader.batchCount())
	require.Equal(t, 1, uploader.singleCount())
	require.Equal(t, models.MediaKindVideo, uploader.singles[0].Kind)
}

func TestStartCaptureIgnoredWhileRunning(t *testing.T) {
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio},
		&fakeDevice{kind: models.MediaKindVideo},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	sessionID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	coord.StartCapture(context.Background(), sessionID, ownerID, 30*time.Millisecond)
	coord.StartCapture(context.Background(), sessionID, ownerID, 30*time.Millisecond)

	uploader.awaitKind(t)
	uploader.awaitKind(t)
	waitIdle(t, state)

	require.Equal(t, 1, uploader.batchCount(), "second start must not spawn a second capture")
}

func TestStopCaptureSafelyExposesPendingUpload(t *testing.T) {
	audioAcquired := make(chan struct{})
	videoAcquired := make(chan struct{})
	uploader := &blockingUploader{release: make(chan struct{})}
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio, acquired: audioAcquired},
		&fakeDevice{kind: models.MediaKindVideo, acquired: videoAcquired},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), time.Minute)
	<-audioAcquired
	<-videoAcquired

	coord.StopCaptureSafely(context.Background())

	// The dispatch decision happened before the safe stop returned, so a
	// deactivation checking for in-flight uploads cannot miss this batch.
	require.True(t, state.IsUploading())

	close(uploader.release)
	waitIdle(t, state)
}

func TestStopCaptureSafelyFinalizesBoth(t *testing.T) {
	audioAcquired := make(chan struct{})
	videoAcquired := make(chan struct{})
	uploader := newFakeUploader()
	state := NewState()
	coord := NewCoordinator(
		&fakeDevice{kind: models.MediaKindAudio, acquired: audioAcquired},
		&fakeDevice{kind: models.MediaKindVideo, acquired: videoAcquired},
		uploader, state, 200*time.Millisecond, logger.NewNop(),
	)

	coord.StartCapture(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), time.Minute)
	<-audioAcquired
	<-videoAcquired

	coord.StopCaptureSafely(context.Background())
	require.False(t, state.IsRecording())

	uploader.awaitKind(t)
	uploader.awaitKind(t)
	waitIdle(t, state)
	require.Equal(t, 1, uploader.batchCount())
}
