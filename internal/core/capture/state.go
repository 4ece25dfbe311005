package capture

import (
	"sync"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// State is the single source of truth for "is evidence work in flight". It is
// injected into every component that needs it; flags are set before the work they
// describe starts and cleared only after it has fully settled.
type State struct {
	mu        sync.Mutex
	recording bool
	pending   int
	gen       uint64
	idle      chan struct{}
}

func NewState() *State {
	return &State{idle: closedChan}
}

func (s *State) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *State) IsUploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

func (s *State) setRecording(v bool) {
	s.mu.Lock()
	s.recording = v
	s.mu.Unlock()
}

// beginUpload marks one upload operation outstanding. The returned release is
// bound to the current generation: if Reset runs before an upload goroutine
// finishes, its release becomes a no-op instead of draining the next session's
// counter.
func (s *State) beginUpload() (release func()) {
	s.mu.Lock()
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
	gen := s.gen
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.endUpload(gen)
		})
	}
}

func (s *State) endUpload(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.pending == 0 {
		return
	}
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

// UploadsDone returns a channel closed once no upload is outstanding. Safe to call
// at any time; an idle state yields an already-closed channel.
func (s *State) UploadsDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// Reset clears all flags unconditionally. Called on session deactivation regardless
// of how the drain went.
func (s *State) Reset() {
	s.mu.Lock()
	s.recording = false
	s.gen++
	if s.pending > 0 {
		s.pending = 0
		close(s.idle)
	}
	s.mu.Unlock()
}
