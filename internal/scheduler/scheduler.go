// Package scheduler runs simulations once on demand or continuously on a
// timer, bounded by a run cap, a duration cap and a persisted cooldown.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/energy-pipeline/internal/clock"
	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/metrics"
	"github.com/ashureev/energy-pipeline/internal/store"
	"github.com/ashureev/energy-pipeline/internal/trigger"
)

// CooldownKey is the persisted key holding the epoch-millisecond start of
// the most recent continuous sequence.
const CooldownKey = "last_simulation_start"

const msgSimulating = "Simulating data and uploading file..."

// Trigger performs one remote simulation.
type Trigger interface {
	Trigger(ctx context.Context) (trigger.Result, error)
}

// Recorder stores produced files.
type Recorder interface {
	Append(ctx context.Context, rec domain.RunRecord) error
}

// Reporter receives human-readable status updates.
type Reporter interface {
	Set(message string)
}

// Config bounds continuous simulation.
type Config struct {
	Interval  time.Duration
	MaxRuns   int
	MaxWindow time.Duration
	Cooldown  time.Duration
}

// DefaultConfig returns the standard limits: a run every 2 minutes, at most
// 3 runs, within 10 minutes, at most one sequence start per 10 minutes.
func DefaultConfig() Config {
	return Config{
		Interval:  2 * time.Minute,
		MaxRuns:   3,
		MaxWindow: 10 * time.Minute,
		Cooldown:  10 * time.Minute,
	}
}

// Options carries optional collaborators.
type Options struct {
	Clock   clock.Clock
	Slot    *Slot
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	State         State      `json:"state"`
	RunsCompleted int        `json:"runs_completed"`
	MaxRuns       int        `json:"max_runs"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

// continuousRun is the state carried while RunningContinuous.
type continuousRun struct {
	id            uint64
	runsCompleted int
	startedAt     time.Time
	timers        *timerPair
}

// Scheduler coordinates single and continuous simulation runs. Transitions
// are serialized by mu, which is never held across a trigger call.
type Scheduler struct {
	ctx      context.Context
	cfg      Config
	trigger  Trigger
	history  Recorder
	kv       store.KV
	reporter Reporter
	clock    clock.Clock
	slot     *Slot
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	run   *continuousRun
	seq   uint64
	// starting is set while StartContinuous reads and writes the cooldown
	// mark outside mu. The scheduler still reports Idle but accepts no
	// other run requests.
	starting bool
}

// New creates an idle scheduler. Timer-driven runs use ctx. Any timer handle
// left in the slot by a previous scheduler is stopped.
func New(ctx context.Context, cfg Config, trig Trigger, hist Recorder, kv store.KV, reporter Reporter, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Slot == nil {
		opts.Slot = NewSlot()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Scheduler{
		ctx:      ctx,
		cfg:      cfg,
		trigger:  trig,
		history:  hist,
		kv:       kv,
		reporter: reporter,
		clock:    opts.Clock,
		slot:     opts.Slot,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	s.recoverStaleHandle()
	s.metrics.SetState(Idle.String(), stateNames)
	return s
}

// recoverStaleHandle stops a timer recorded by an earlier instance that was
// discarded without being stopped.
func (s *Scheduler) recoverStaleHandle() bool {
	stale := s.slot.swap(nil)
	if stale == nil {
		return false
	}
	stale.Stop()
	s.logger.Info("Cleared stale simulation timer from a previous scheduler")
	return true
}

// Config returns the scheduler's limits.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, MaxRuns: s.cfg.MaxRuns}
	if s.run != nil {
		started := s.run.startedAt
		snap.RunsCompleted = s.run.runsCompleted
		snap.StartedAt = &started
	}
	return snap
}

// CooldownRemaining returns how long until a continuous start is allowed.
func (s *Scheduler) CooldownRemaining(ctx context.Context) time.Duration {
	return s.cooldownRemaining(ctx, s.clock.Now())
}

// RunOnce performs a single simulation. It returns ErrBusy unless the
// scheduler is idle.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.RunRecord, error) {
	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		s.reporter.Set("A simulation is already in progress.")
		return nil, ErrBusy
	}
	s.setStateLocked(RunningOnce)
	s.mu.Unlock()

	rec, err := s.execute(ctx, msgSimulating)

	s.mu.Lock()
	s.setStateLocked(Idle)
	s.mu.Unlock()

	return rec, err
}

// StartContinuous begins a continuous sequence: run #1 immediately, then one
// run per interval until MaxRuns runs were dispatched, MaxWindow elapsed or
// Stop is called. It returns once run #1 has completed. A start within the
// cooldown window of the previous one is refused with *CooldownError.
func (s *Scheduler) StartContinuous(ctx context.Context) error {
	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		s.reporter.Set("A simulation is already in progress.")
		return ErrBusy
	}
	s.starting = true
	s.mu.Unlock()

	// The mark is read and written without holding mu so a slow store does
	// not stall Snapshot. A cancelled request must not read as an absent mark.
	ctx = context.WithoutCancel(ctx)
	now := s.clock.Now()
	if remaining := s.cooldownRemaining(ctx, now); remaining > 0 {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()

		refusal := &CooldownError{Remaining: remaining}
		s.metrics.GuardRefused()
		s.logger.Info("Continuous simulation refused by cooldown", "remaining", refusal.Remaining)
		s.reporter.Set(fmt.Sprintf("Please wait %s before starting another continuous simulation.",
			refusal.Remaining.Round(time.Second)))
		return refusal
	}

	if err := s.kv.Save(ctx, CooldownKey, now.UnixMilli()); err != nil {
		// The guard is advisory; a lost mark only weakens it.
		s.logger.Warn("Failed to persist cooldown mark", "error", err)
	}

	s.mu.Lock()
	s.starting = false
	s.seq++
	run := &continuousRun{id: s.seq, runsCompleted: 1, startedAt: now}
	id := run.id
	// The cap is armed first so it wins a tie with a tick.
	limit := s.clock.AfterFunc(s.cfg.MaxWindow, func() { s.deadlineReached(id) })
	repeat := s.clock.Every(s.cfg.Interval, func() { s.tick(id) })
	run.timers = &timerPair{repeat: repeat, limit: limit}

	if stale := s.slot.swap(run.timers); stale != nil {
		stale.Stop()
	}
	s.run = run
	s.setStateLocked(RunningContinuous)
	s.mu.Unlock()

	s.metrics.ContinuousStarted()
	s.logger.Info("Continuous simulation started",
		"interval", s.cfg.Interval, "max_runs", s.cfg.MaxRuns, "max_window", s.cfg.MaxWindow)

	_, _ = s.execute(ctx, fmt.Sprintf("Continuous simulation started. Generating every %s...", s.cfg.Interval))
	return nil
}

// Stop ends the continuous sequence. Runs already dispatched complete and
// are recorded. It returns ErrNotRunning when no sequence is active.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RunningContinuous {
		return ErrNotRunning
	}
	s.finishLocked(reasonManual, "Continuous simulation stopped.")
	return nil
}

// Close disarms any pending timers without reporting a status change.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == RunningContinuous {
		s.finishLocked(reasonClosed, "")
	}
}

func (s *Scheduler) tick(id uint64) {
	s.mu.Lock()
	run := s.run
	if s.state != RunningContinuous || run == nil || run.id != id {
		s.mu.Unlock()
		return
	}
	if run.runsCompleted >= s.cfg.MaxRuns {
		s.finishLocked(reasonMaxRuns, fmt.Sprintf("Stopped: max runs reached (%d simulations).", s.cfg.MaxRuns))
		s.mu.Unlock()
		return
	}
	run.runsCompleted++
	n := run.runsCompleted
	s.mu.Unlock()

	s.logger.Debug("Continuous simulation tick", "run", n, "max_runs", s.cfg.MaxRuns)
	_, _ = s.execute(s.ctx, msgSimulating)
}

func (s *Scheduler) deadlineReached(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RunningContinuous || s.run == nil || s.run.id != id {
		return
	}
	s.finishLocked(reasonDeadline, fmt.Sprintf("Stopped: %s duration limit reached.", s.cfg.MaxWindow))
}

// finishLocked disarms both timers and returns to Idle. An empty message
// leaves the status untouched.
func (s *Scheduler) finishLocked(reason, message string) {
	run := s.run
	run.timers.Stop()
	s.slot.release(run.timers)
	s.run = nil
	s.setStateLocked(Idle)

	s.metrics.ContinuousStopped(reason)
	s.logger.Info("Continuous simulation ended", "reason", reason, "runs", run.runsCompleted)
	if message != "" {
		s.reporter.Set(message)
	}
}

func (s *Scheduler) busyLocked() bool {
	return s.state != Idle || s.starting
}

func (s *Scheduler) setStateLocked(st State) {
	s.state = st
	s.metrics.SetState(st.String(), stateNames)
}

// execute performs one run. Failures are reported and returned, never
// recorded in history.
func (s *Scheduler) execute(ctx context.Context, pending string) (*domain.RunRecord, error) {
	s.reporter.Set(pending)

	started := s.clock.Now()
	// A dispatched run completes even if the requester goes away; the
	// trigger client's timeout bounds it.
	res, err := s.trigger.Trigger(context.WithoutCancel(ctx))
	elapsed := s.clock.Now().Sub(started)
	if err != nil {
		s.metrics.RunFinished(outcome(err), elapsed)
		s.logger.Warn("Simulation run failed", "error", err)
		s.reporter.Set(err.Error())
		return nil, err
	}

	rec := domain.RunRecord{Filename: res.Filename, ProducedAt: s.clock.Now()}
	if err := s.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("Failed to record produced file", "filename", rec.Filename, "error", err)
	}

	s.metrics.RunFinished(metrics.OutcomeSuccess, elapsed)
	s.logger.Info("Simulation run completed", "filename", rec.Filename)
	s.reporter.Set(fmt.Sprintf("File %q created and uploaded to storage.", rec.Filename))
	return &rec, nil
}

// cooldownRemaining returns how long until a continuous start is allowed
// at now. A mark further ahead than one cooldown window cannot come from
// this clock and is ignored.
func (s *Scheduler) cooldownRemaining(ctx context.Context, now time.Time) time.Duration {
	var ms int64
	if !s.kv.Load(ctx, CooldownKey, &ms) {
		return 0
	}
	mark := time.UnixMilli(ms)
	if mark.Sub(now) > s.cfg.Cooldown {
		s.logger.Warn("Ignoring cooldown mark beyond the cooldown window", "mark", mark)
		return 0
	}
	if remaining := mark.Add(s.cfg.Cooldown).Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

func outcome(err error) string {
	if trigger.IsNetwork(err) {
		return metrics.OutcomeNetwork
	}
	return metrics.OutcomeRemote
}
