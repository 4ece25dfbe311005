package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sosguard/internal/devices"
	"sosguard/pkg/logger"
)

type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var ErrAlreadyStarted = errors.New("recorder already started")

// Result is the single settled outcome of a recording. Clip is nil when the
// recording produced nothing.
type Result struct {
	Clip *devices.Clip
	Err  error
}

// Recorder owns one device's recording lifecycle. Whichever of the auto-stop timer
// or StopEarly reaches finalize first wins; the loser observes the settled result.
// A Recorder is single-use: one Start, one settled Result.
type Recorder struct {
	device devices.Device
	log    *logger.Logger

	mu            sync.Mutex
	state         State
	stopRequested bool
	capture       devices.Capture
	timer         *time.Timer
	done          chan struct{}
	result        Result
}

func New(device devices.Device, log *logger.Logger) *Recorder {
	return &Recorder{
		device: device,
		log:    log,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// Start acquires the device and begins recording, arming an auto-stop timer for
// maxDuration. Acquisition failure is returned as an error; the caller decides
// whether that is fatal (for SOS capture it is not).
func (r *Recorder) Start(ctx context.Context, maxDuration time.Duration) (*Handle, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	r.state = StateStarting
	r.mu.Unlock()

	capture, err := r.device.Acquire(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = StateFailed
		r.result = Result{Err: err}
		close(r.done)
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to acquire %s device: %w", r.device.Kind(), err)
	}

	r.mu.Lock()
	r.state = StateRecording
	r.capture = capture
	r.timer = time.AfterFunc(maxDuration, func() {
		r.finalize(context.Background())
	})
	stopRequested := r.stopRequested
	r.mu.Unlock()

	// A stop that raced the acquisition wins immediately.
	if stopRequested {
		r.finalize(ctx)
	}

	return &Handle{r: r}, nil
}

// StopEarly requests immediate finalize. Calling it when the recorder never started
// returns a nil clip with no error; calling it after the result settled returns the
// same result without touching the device again.
func (r *Recorder) StopEarly(ctx context.Context) (*devices.Clip, error) {
	res := r.finalize(ctx)
	return res.Clip, res.Err
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// finalize settles the recording exactly once. Concurrent callers past the first
// block until the winner's result is available and return it unchanged.
func (r *Recorder) finalize(ctx context.Context) Result {
	r.mu.Lock()
	switch r.state {
	case StateIdle:
		r.mu.Unlock()
		return Result{}
	case StateStarting, StateFinalizing:
		r.stopRequested = true
		done := r.done
		r.mu.Unlock()
		// The stop request is recorded; a stuck acquire must not hold the caller.
		select {
		case <-done:
		case <-ctx.Done():
			return Result{Err: ctx.Err()}
		}
		r.mu.Lock()
		res := r.result
		r.mu.Unlock()
		return res
	case StateCompleted, StateFailed:
		res := r.result
		r.mu.Unlock()
		return res
	}
	r.state = StateFinalizing
	capture := r.capture
	timer := r.timer
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	clip, err := capture.Stop(ctx)

	r.mu.Lock()
	if err != nil {
		r.state = StateFailed
		r.result = Result{Err: fmt.Errorf("failed to finalize %s recording: %w", r.device.Kind(), err)}
	} else {
		r.state = StateCompleted
		r.result = Result{Clip: clip}
	}
	res := r.result
	close(r.done)
	r.mu.Unlock()
	return res
}

// Handle is the capability the coordinator holds: await the settled result without
// owning the device.
type Handle struct {
	r *Recorder
}

// Done is closed once the recording result has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.r.done
}

// Await blocks until the result settles or ctx ends.
func (h *Handle) Await(ctx context.Context) (*devices.Clip, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.r.done:
	}
	h.r.mu.Lock()
	res := h.r.result
	h.r.mu.Unlock()
	return res.Clip, res.Err
}
