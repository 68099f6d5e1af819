package editor

import (
	"sync"
	"time"

	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

// StepEvent asks the host to apply one Editor.Step.
type StepEvent struct {
	Field page.Field
	Dir   int
}

// Stepper turns a press-and-hold into a stream of step events. The timer
// rearms itself only while the button is held; Release stops it and drops
// any event not yet consumed. Events are delivered on a channel so the host
// applies them on its own goroutine.
type Stepper struct {
	interval time.Duration
	events   chan StepEvent

	mu    sync.Mutex
	held  bool
	gen   uint64
	timer *time.Timer
}

// NewStepper creates a stepper that repeats every interval.
func NewStepper(interval time.Duration) *Stepper {
	return &Stepper{
		interval: interval,
		events:   make(chan StepEvent, 1),
	}
}

// Events is the channel the host reads.
func (s *Stepper) Events() <-chan StepEvent {
	return s.events
}

// Press emits one event right away and keeps emitting while held.
func (s *Stepper) Press(f page.Field, dir int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.held = true
	s.gen++
	ev := StepEvent{Field: f, Dir: dir}
	s.emitLocked(ev)
	s.armLocked(s.gen, ev)
}

// Release cancels the repeat. Safe to call when not held.
func (s *Stepper) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Leave is Release for pointer-leave.
func (s *Stepper) Leave() {
	s.Release()
}

// Held reports whether a press is active.
func (s *Stepper) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

func (s *Stepper) armLocked(gen uint64, ev StepEvent) {
	s.timer = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.held || s.gen != gen {
			return
		}
		s.emitLocked(ev)
		s.armLocked(gen, ev)
	})
}

func (s *Stepper) emitLocked(ev StepEvent) {
	select {
	case s.events <- ev:
	default:
		// host is behind; coalesce
	}
}

func (s *Stepper) stopLocked() {
	s.held = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	select {
	case <-s.events:
	default:
	}
}
