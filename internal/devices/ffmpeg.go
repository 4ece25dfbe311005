package devices

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"sosguard/internal/models"

	"github.com/google/uuid"
)

// FFmpegDevice records from a system capture source by shelling out to ffmpeg.
// Exclusivity is enforced in-process: Acquire fails while a capture is live.
type FFmpegDevice struct {
	kind       models.MediaKind
	binary     string
	inputArgs  []string
	ext        string
	scratchDir string

	mu   sync.Mutex
	held bool
}

func NewFFmpegAudioDevice(scratchDir, source string) *FFmpegDevice {
	if source == "" {
		source = "default"
	}
	return &FFmpegDevice{
		kind:       models.MediaKindAudio,
		binary:     "ffmpeg",
		inputArgs:  []string{"-f", "alsa", "-i", source},
		ext:        ".m4a",
		scratchDir: scratchDir,
	}
}

func NewFFmpegVideoDevice(scratchDir, source string) *FFmpegDevice {
	if source == "" {
		source = "/dev/video0"
	}
	return &FFmpegDevice{
		kind:       models.MediaKindVideo,
		binary:     "ffmpeg",
		inputArgs:  []string{"-f", "v4l2", "-i", source},
		ext:        ".mp4",
		scratchDir: scratchDir,
	}
}

func (d *FFmpegDevice) Kind() models.MediaKind {
	return d.kind
}

func (d *FFmpegDevice) Acquire(ctx context.Context) (Capture, error) {
	d.mu.Lock()
	if d.held {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s device already held", ErrDeviceUnavailable, d.kind)
	}
	d.held = true
	d.mu.Unlock()

	outPath := filepath.Join(d.scratchDir, fmt.Sprintf("%s-%s%s", d.kind, uuid.NewString(), d.ext))

	args := append([]string{"-y"}, d.inputArgs...)
	args = append(args, "-movflags", "+faststart", outPath)

	cmd := exec.Command(d.binary, args...)
	if err := cmd.Start(); err != nil {
		d.release()
		return nil, fmt.Errorf("%w: failed to start %s capture: %v", ErrDeviceUnavailable, d.kind, err)
	}

	return &ffmpegCapture{
		device:  d,
		cmd:     cmd,
		path:    outPath,
		started: time.Now(),
	}, nil
}

func (d *FFmpegDevice) release() {
	d.mu.Lock()
	d.held = false
	d.mu.Unlock()
}

type ffmpegCapture struct {
	device  *FFmpegDevice
	cmd     *exec.Cmd
	path    string
	started time.Time
}

// Stop interrupts ffmpeg so it can finalize the container, then waits for exit.
func (c *ffmpegCapture) Stop(ctx context.Context) (*Clip, error) {
	defer c.device.release()

	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		c.cmd.Process.Kill()
		return nil, fmt.Errorf("failed to interrupt %s capture: %w", c.device.kind, err)
	}

	waited := make(chan error, 1)
	go func() {
		waited <- c.cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		c.cmd.Process.Kill()
		return nil, ctx.Err()
	case <-waited:
		// ffmpeg exits non-zero on SIGINT; the output file is the real signal.
		if _, err := os.Stat(c.path); err != nil {
			return nil, fmt.Errorf("%s capture produced no output: %w", c.device.kind, err)
		}
		return &Clip{
			Path:       c.path,
			Duration:   time.Since(c.started),
			RecordedAt: c.started,
		}, nil
	}
}
