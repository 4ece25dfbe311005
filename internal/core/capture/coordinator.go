package capture

import (
	"context"
	"sync"
	"time"

	"sosguard/internal/core/recorder"
	"sosguard/internal/core/upload"
	"sosguard/internal/devices"
	"sosguard/internal/models"
	"sosguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Uploader is the evidence sink the coordinator hands finished recordings to.
type Uploader interface {
	Upload(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifact *upload.LocalArtifact) (*models.EvidenceArtifact, error)
	UploadBatch(ctx context.Context, ownerID, sessionID primitive.ObjectID, artifacts []*upload.LocalArtifact) []*models.EvidenceArtifact
}

// Coordinator runs one audio and one video recorder for a session, uploads whatever
// they produce, and survives either one failing. Video that finalizes after the
// primary batch has been dispatched is uploaded through an independent path.
type Coordinator struct {
	audio    devices.Device
	video    devices.Device
	uploader Uploader
	state    *State
	grace    time.Duration
	log      *logger.Logger

	mu         sync.Mutex
	capturing  bool
	audioRec   *recorder.Recorder
	videoRec   *recorder.Recorder
	dispatched chan struct{}
}

func NewCoordinator(audio, video devices.Device, uploader Uploader, state *State, videoSettleGrace time.Duration, log *logger.Logger) *Coordinator {
	if videoSettleGrace <= 0 {
		videoSettleGrace = 500 * time.Millisecond
	}
	return &Coordinator{
		audio:    audio,
		video:    video,
		uploader: uploader,
		state:    state,
		grace:    videoSettleGrace,
		log:      log,
	}
}

// StartCapture begins both recorders for the session and returns immediately. While
// a capture is running, further calls are no-ops.
func (c *Coordinator) StartCapture(ctx context.Context, sessionID, ownerID primitive.ObjectID, maxDuration time.Duration) {
	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		c.log.WithSessionID(sessionID).Debug("Capture already running, ignoring start")
		return
	}
	c.capturing = true
	audioRec := recorder.New(c.audio, c.log)
	videoRec := recorder.New(c.video, c.log)
	dispatched := make(chan struct{})
	c.audioRec = audioRec
	c.videoRec = videoRec
	c.dispatched = dispatched
	c.mu.Unlock()

	c.state.setRecording(true)

	go c.run(ctx, sessionID, ownerID, maxDuration, audioRec, videoRec, dispatched)
}

// IsCapturing reports whether a capture is currently running.
func (c *Coordinator) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

func (c *Coordinator) run(ctx context.Context, sessionID, ownerID primitive.ObjectID, maxDuration time.Duration, audioRec, videoRec *recorder.Recorder, dispatched chan struct{}) {
	// Closed once the primary-batch decision is made, so a safe stop can
	// observe the pending upload instead of racing the dispatch.
	defer close(dispatched)

	type startOutcome struct {
		handle *recorder.Handle
		err    error
	}

	// Both starts are issued together; neither waits for the other to acquire.
	audioCh := make(chan startOutcome, 1)
	videoCh := make(chan startOutcome, 1)
	go func() {
		h, err := audioRec.Start(ctx, maxDuration)
		audioCh <- startOutcome{h, err}
	}()
	go func() {
		h, err := videoRec.Start(ctx, maxDuration)
		videoCh <- startOutcome{h, err}
	}()
	audioStart := <-audioCh
	videoStart := <-videoCh

	// Either device failing leaves the other untouched.
	var audioClip *devices.Clip
	if audioStart.err != nil {
		c.log.WithSessionID(sessionID).WithError(audioStart.err).
			Warn("Audio device unavailable, continuing with video only")
	} else {
		c.log.LogCaptureEvent(sessionID, string(models.MediaKindAudio), "started")
		clip, err := audioStart.handle.Await(ctx)
		if err != nil {
			c.log.WithSessionID(sessionID).WithError(err).Warn("Audio recording failed")
		} else {
			audioClip = clip
			c.log.LogCaptureEvent(sessionID, string(models.MediaKindAudio), "settled")
		}
	}

	// Video teardown is slower than audio in the common case. Give it a short grace
	// to join the primary batch; past that it goes through the late path.
	var (
		videoClip *devices.Clip
		videoLate bool
	)
	if videoStart.err != nil {
		c.log.WithSessionID(sessionID).WithError(videoStart.err).
			Warn("Video device unavailable, continuing with audio only")
	} else {
		c.log.LogCaptureEvent(sessionID, string(models.MediaKindVideo), "started")
		graceTimer := time.NewTimer(c.grace)
		select {
		case <-videoStart.handle.Done():
			graceTimer.Stop()
			clip, err := videoStart.handle.Await(ctx)
			if err != nil {
				c.log.WithSessionID(sessionID).WithError(err).Warn("Video recording failed")
			} else {
				videoClip = clip
				c.log.LogCaptureEvent(sessionID, string(models.MediaKindVideo), "settled")
			}
		case <-graceTimer.C:
			videoLate = true
		}
	}

	if !videoLate {
		c.state.setRecording(false)
		c.finishCapture()
	}

	var batch []*upload.LocalArtifact
	if audioClip != nil {
		batch = append(batch, &upload.LocalArtifact{Kind: models.MediaKindAudio, Clip: audioClip})
	}
	if videoClip != nil {
		batch = append(batch, &upload.LocalArtifact{Kind: models.MediaKindVideo, Clip: videoClip})
	}

	batchDispatched := false
	if len(batch) > 0 {
		batchDispatched = true
		release := c.state.beginUpload()
		go func() {
			defer release()
			uploaded := c.uploader.UploadBatch(ctx, ownerID, sessionID, batch)
			c.log.WithSessionID(sessionID).
				WithField("uploaded", len(uploaded)).
				WithField("attempted", len(batch)).
				Info("Evidence upload batch settled")
		}()
	} else if !videoLate {
		// Nothing was captured; the session simply has no evidence.
		c.log.WithSessionID(sessionID).Info("Capture produced no artifacts")
	}

	if videoLate {
		go c.awaitLateVideo(ctx, sessionID, ownerID, videoStart.handle, batchDispatched)
	}
}

// awaitLateVideo is the second await path: the video future settled after the
// primary batch was already on its way. The artifact is uploaded out-of-band with
// the same metadata shape the batch writes.
func (c *Coordinator) awaitLateVideo(ctx context.Context, sessionID, ownerID primitive.ObjectID, handle *recorder.Handle, batchDispatched bool) {
	clip, err := handle.Await(ctx)

	c.state.setRecording(false)
	c.finishCapture()

	if err != nil {
		c.log.WithSessionID(sessionID).WithError(err).Warn("Late video recording failed")
		return
	}
	if clip == nil {
		return
	}

	if batchDispatched {
		c.log.WithSessionID(sessionID).Info("Video settled after batch dispatch, uploading out of band")
	}

	release := c.state.beginUpload()
	defer release()
	artifact := &upload.LocalArtifact{Kind: models.MediaKindVideo, Clip: clip}
	if _, err := c.uploader.Upload(ctx, ownerID, sessionID, artifact); err != nil {
		c.log.WithSessionID(sessionID).WithError(err).Error("Late video upload failed")
	}
}

// StopCaptureSafely requests stop on both recorders before awaiting either, then
// waits for both to finalize. It never returns an error: stop failures are logged
// so that session deactivation can always proceed.
func (c *Coordinator) StopCaptureSafely(ctx context.Context) {
	c.mu.Lock()
	audioRec := c.audioRec
	videoRec := c.videoRec
	dispatched := c.dispatched
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, rec := range []*recorder.Recorder{audioRec, videoRec} {
		if rec == nil {
			continue
		}
		wg.Add(1)
		go func(r *recorder.Recorder) {
			defer wg.Done()
			if _, err := r.StopEarly(ctx); err != nil {
				c.log.WithError(err).Error("Recorder stop failed during safe stop")
			}
		}(rec)
	}
	wg.Wait()

	// Wait for the primary-batch decision so callers checking IsUploading
	// next see any upload this capture is about to start.
	if dispatched != nil {
		select {
		case <-dispatched:
		case <-ctx.Done():
		}
	}

	c.state.setRecording(false)
}

func (c *Coordinator) finishCapture() {
	c.mu.Lock()
	c.capturing = false
	c.mu.Unlock()
}
