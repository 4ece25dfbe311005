package devices

import (
	"context"
	"errors"
	"time"

	"sosguard/internal/models"
)

// ErrDeviceUnavailable covers permission denial and hardware-busy failures. Callers
// treat it as "no artifact from this device", not as a fatal session error.
var ErrDeviceUnavailable = errors.New("recording device unavailable")

// Clip is a finalized media artifact on local disk.
type Clip struct {
	Path       string
	Duration   time.Duration
	RecordedAt time.Time
}

// Capture is one in-progress recording. Stop finalizes the file and releases the
// underlying device.
type Capture interface {
	Stop(ctx context.Context) (*Clip, error)
}

// Device acquires exclusive use of one physical recording device (microphone or
// camera). Only one Capture may be live per Device at a time.
type Device interface {
	Kind() models.MediaKind
	Acquire(ctx context.Context) (Capture, error)
}
