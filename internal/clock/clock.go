// Package clock abstracts wall-clock time and timers so schedulers can be
// driven by virtual time in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending one-shot or repeating callback.
type Timer interface {
	// Stop prevents any further firing. It reports whether the timer was
	// still armed.
	Stop() bool
}

// Clock provides the current time and callback timers.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once, d from now.
	AfterFunc(d time.Duration, f func()) Timer

	// Every calls f every d, starting d from now, until stopped. Calls from
	// one Every timer never overlap.
	Every(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &ticker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.loop(f)
	return t
}

type ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *ticker) loop(f func()) {
	for {
		select {
		case <-t.ticker.C:
			// Stop may race with a tick that was already delivered.
			select {
			case <-t.done:
				return
			default:
			}
			f()
		case <-t.done:
			return
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
