// Package status holds the single human-readable status line shown by the
// dashboard.
package status

import (
	"sync"
	"time"
)

// Status is the current status message and when it was set.
type Status struct {
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reporter holds the current status. Set replaces it; no history is kept.
type Reporter struct {
	mu     sync.RWMutex
	now    func() time.Time
	cur    Status
	nextID int
	subs   map[int]chan Status
}

// NewReporter creates a Reporter stamping updates with now.
func NewReporter(now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{now: now, subs: make(map[int]chan Status)}
}

// Set replaces the current status and notifies subscribers.
func (r *Reporter) Set(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur = Status{Message: message, UpdatedAt: r.now()}
	for _, ch := range r.subs {
		publish(ch, r.cur)
	}
}

// Current returns the current status.
func (r *Reporter) Current() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

// Subscribe returns a channel that always holds the most recent status not
// yet received. Call cancel to release it.
func (r *Reporter) Subscribe() (updates <-chan Status, cancel func()) {
	ch := make(chan Status, 1)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// publish replaces any unread value so slow readers only skip stale ones.
// Callers hold r.mu, so there is a single writer per channel.
func publish(ch chan Status, s Status) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}
