package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/pkg/logger"
)

type fakeCapture struct {
	mu      sync.Mutex
	clip    *devices.Clip
	err     error
	stopped int
}

func (c *fakeCapture) Stop(ctx context.Context) (*devices.Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	return c.clip, c.err
}

func (c *fakeCapture) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

type fakeDevice struct {
	kind        models.MediaKind
	capture     *fakeCapture
	acquireErr  error
	acquireGate chan struct{}
}

func (d *fakeDevice) Kind() models.MediaKind { return d.kind }

func (d *fakeDevice) Acquire(ctx context.Context) (devices.Capture, error) {
	if d.acquireGate != nil {
		<-d.acquireGate
	}
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	return d.capture, nil
}

func newTestClip() *devices.Clip {
	return &devices.Clip{
		Path:       "/tmp/clip.m4a",
		Duration:   3 * time.Second,
		RecordedAt: time.Now(),
	}
}

func TestStopEarlyReturnsClip(t *testing.T) {
	capture := &fakeCapture{clip: newTestClip()}
	device := &fakeDevice{kind: models.MediaKindAudio, capture: capture}
	rec := New(device, logger.NewNop())

	_, err := rec.Start(context.Background(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, StateRecording, rec.State())

	clip, err := rec.StopEarly(context.Background())
	require.NoError(t, err)
	require.Equal(t, capture.clip, clip)
	require.Equal(t, StateCompleted, rec.State())
	require.Equal(t, 1, capture.stopCount())
}

func TestStopEarlyIdempotent(t *testing.T) {
	capture := &fakeCapture{clip: newTestClip()}
	device := &fakeDevice{kind: models.MediaKindAudio, capture: capture}
	rec := New(device, logger.NewNop())

	_, err := rec.Start(context.Background(), time.Minute)
	require.NoError(t, err)

	first, err := rec.StopEarly(context.Background())
	require.NoError(t, err)

	second, err := rec.StopEarly(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, capture.stopCount(), "device must be stopped exactly once")
}

func TestStopEarlyBeforeStart(t *testing.T) {
	device := &fakeDevice{kind: models.MediaKindAudio, capture: &fakeCapture{}}
	rec := New(device, logger.NewNop())

	clip, err := rec.StopEarly(context.Background())
	require.NoError(t, err)
	require.Nil(t, clip)
	require.Equal(t, StateIdle, rec.State())
}

func TestStartTwice(t *testing.T) {
	device := &fakeDevice{kind: models.MediaKindAudio, capture: &fakeCapture{clip: newTestClip()}}
	rec := New(device, logger.NewNop())

	_, err := rec.Start(context.Background(), time.Minute)
	require.NoError(t, err)

	_, err = rec.Start(context.Background(), time.Minute)
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestAutoStopTimer(t *testing.T) {
	capture := &fakeCapture{clip: newTestClip()}
	device := &fakeDevice{kind: models.MediaKindVideo, capture: capture}
	rec := New(device, logger.NewNop())

	handle, err := rec.Start(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)

	select {
	case <-handle.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("auto-stop timer never fired")
	}

	clip, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, capture.clip, clip)
	require.Equal(t, StateCompleted, rec.State())
	require.Equal(t, 1, capture.stopCount())
}

func TestAcquireFailure(t *testing.T) {
	acquireErr := errors.New("camera busy")
	device := &fakeDevice{kind: models.MediaKindVideo, acquireErr: acquireErr}
	rec := New(device, logger.NewNop())

	_, err := rec.Start(context.Background(), time.Minute)
	require.ErrorIs(t, err, acquireErr)
	require.Equal(t, StateFailed, rec.State())

	// The settled result keeps surfacing the acquisition failure.
	clip, err := rec.StopEarly(context.Background())
	require.Nil(t, clip)
	require.ErrorIs(t, err, acquireErr)
}

func TestStopDuringAcquire(t *testing.T) {
	gate := make(chan struct{})
	capture := &fakeCapture{clip: newTestClip()}
	device := &fakeDevice{kind: models.MediaKindAudio, capture: capture, acquireGate: gate}
	rec := New(device, logger.NewNop())

	startErr := make(chan error, 1)
	go func() {
		_, err := rec.Start(context.Background(), time.Minute)
		startErr <- err
	}()

	require.Eventually(t, func() bool {
		return rec.State() == StateStarting
	}, 2*time.Second, 5*time.Millisecond)

	type stopOutcome struct {
		clip *devices.Clip
		err  error
	}
	stopped := make(chan stopOutcome, 1)
	go func() {
		clip, err := rec.StopEarly(context.Background())
		stopped <- stopOutcome{clip, err}
	}()

	// Let the acquisition finish after the stop request landed.
	time.Sleep(10 * time.Millisecond)
	close(gate)

	require.NoError(t, <-startErr)
	outcome := <-stopped
	require.NoError(t, outcome.err)
	require.Equal(t, capture.clip, outcome.clip)
	require.Equal(t, StateCompleted, rec.State())
	require.Equal(t, 1, capture.stopCount())
}

func TestStopEarlyHonorsContextWhileAcquiring(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })

	capture := &fakeCapture{clip: newTestClip()}
	device := &fakeDevice{kind: models.MediaKindVideo, capture: capture, acquireGate: gate}
	rec := New(device, logger.NewNop())

	go rec.Start(context.Background(), time.Minute)
	require.Eventually(t, func() bool {
		return rec.State() == StateStarting
	}, 2*time.Second, 5*time.Millisecond)

	// The device never answers; the stop call must still come back.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rec.StopEarly(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopFailure(t *testing.T) {
	stopErr := errors.New("encoder crashed")
	capture := &fakeCapture{err: stopErr}
	device := &fakeDevice{kind: models.MediaKindVideo, capture: capture}
	rec := New(device, logger.NewNop())

	_, err := rec.Start(context.Background(), time.Minute)
	require.NoError(t, err)

	clip, err := rec.StopEarly(context.Background())
	require.Nil(t, clip)
	require.ErrorIs(t, err, stopErr)
	require.Equal(t, StateFailed, rec.State())
}
