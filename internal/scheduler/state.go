package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// State is the scheduler's current mode. Exactly one holds at a time.
type State int

const (
	Idle State = iota
	RunningOnce
	RunningContinuous
)

var stateNames = []string{"idle", "running_once", "running_continuous"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrBusy is returned when a request arrives while the scheduler is in
	// a state that cannot accept it.
	ErrBusy = errors.New("simulation already in progress")

	// ErrNotRunning is returned by Stop when no continuous sequence is active.
	ErrNotRunning = errors.New("no continuous simulation running")
)

// CooldownError refuses a continuous start made too soon after the last one.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("continuous simulation started too recently, retry in %s", e.Remaining.Round(time.Second))
}

// Stop reasons reported to metrics.
const (
	reasonManual   = "manual"
	reasonMaxRuns  = "max_runs"
	reasonDeadline = "duration_limit"
	reasonClosed   = "closed"
)
