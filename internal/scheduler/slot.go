package scheduler

import (
	"sync"

	"github.com/ashureev/energy-pipeline/internal/clock"
)

// Slot holds the live timer handle of the continuous sequence currently
// running in this process. It outlives individual Scheduler instances so a
// rebuilt scheduler can cancel timers its predecessor left armed.
type Slot struct {
	mu     sync.Mutex
	handle clock.Timer
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Occupied reports whether a live handle is recorded.
func (s *Slot) Occupied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

func (s *Slot) swap(h clock.Timer) clock.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.handle
	s.handle = h
	return old
}

// release clears the slot only if it still holds h.
func (s *Slot) release(h clock.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == h {
		s.handle = nil
	}
}

// timerPair is the repeating timer and the duration cap of one sequence,
// stopped together.
type timerPair struct {
	repeat clock.Timer
	limit  clock.Timer
}

func (p *timerPair) Stop() bool {
	repeatArmed := p.repeat.Stop()
	limitArmed := p.limit.Stop()
	return repeatArmed || limitArmed
}
