package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/scheduler"
	"github.com/ashureev/energy-pipeline/internal/status"
)

// HistoryReader lists produced files, newest first.
type HistoryReader interface {
	All(ctx context.Context) []domain.RunRecord
}

// StatusReader returns the current status line.
type StatusReader interface {
	Current() status.Status
}

// SimulationHandler exposes the scheduler's controls. The scheduler is read
// through a pointer so a configuration reload can swap it.
type SimulationHandler struct {
	sched    *atomic.Pointer[scheduler.Scheduler]
	history  HistoryReader
	reporter StatusReader
}

// NewSimulationHandler creates a simulation handler.
func NewSimulationHandler(sched *atomic.Pointer[scheduler.Scheduler], history HistoryReader, reporter StatusReader) *SimulationHandler {
	return &SimulationHandler{sched: sched, history: history, reporter: reporter}
}

// RegisterRoutes registers simulation routes.
func (h *SimulationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Route("/simulate", func(r chi.Router) {
			r.Post("/once", h.RunOnce)
			r.Post("/continuous", h.StartContinuous)
			r.Post("/stop", h.Stop)
			r.Get("/status", h.Status)
			r.Get("/history", h.History)
		})
	})
}

type statusResponse struct {
	Message           string             `json:"message"`
	UpdatedAt         *time.Time         `json:"updated_at,omitempty"`
	Scheduler         scheduler.Snapshot `json:"scheduler"`
	CooldownRemaining int64              `json:"cooldown_remaining_seconds"`
}

func (h *SimulationHandler) statusBody(ctx context.Context) statusResponse {
	sched := h.sched.Load()
	cur := h.reporter.Current()
	resp := statusResponse{
		Message:           cur.Message,
		Scheduler:         sched.Snapshot(),
		CooldownRemaining: ceilSeconds(sched.CooldownRemaining(ctx)),
	}
	if !cur.UpdatedAt.IsZero() {
		resp.UpdatedAt = &cur.UpdatedAt
	}
	return resp
}

// RunOnce performs a single simulation and returns the produced file.
func (h *SimulationHandler) RunOnce(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sched.Load().RunOnce(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		Error(w, http.StatusConflict, h.reporter.Current().Message)
		return
	case err != nil:
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, rec)
}

// StartContinuous starts a continuous sequence. The response is sent once
// the first run has finished.
func (h *SimulationHandler) StartContinuous(w http.ResponseWriter, r *http.Request) {
	err := h.sched.Load().StartContinuous(r.Context())

	var cooldown *scheduler.CooldownError
	switch {
	case errors.As(err, &cooldown):
		secs := ceilSeconds(cooldown.Remaining)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		JSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":               h.reporter.Current().Message,
			"retry_after_seconds": secs,
		})
		return
	case errors.Is(err, scheduler.ErrBusy):
		Error(w, http.StatusConflict, h.reporter.Current().Message)
		return
	case err != nil:
		slog.Error("Failed to start continuous simulation", "error", err)
		Error(w, http.StatusInternalServerError, "failed_to_start")
		return
	}
	JSON(w, http.StatusAccepted, h.statusBody(r.Context()))
}

// Stop ends the continuous sequence.
func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Load().Stop(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			Error(w, http.StatusConflict, "no continuous simulation is running")
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, h.statusBody(r.Context()))
}

// Status returns the status line and scheduler state.
func (h *SimulationHandler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.statusBody(r.Context()))
}

// History returns produced files, newest first.
func (h *SimulationHandler) History(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"files": h.history.All(r.Context()),
	})
}

// GetConfig returns the scheduler limits for the frontend.
func (h *SimulationHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.sched.Load().Config()
	JSON(w, http.StatusOK, map[string]interface{}{
		"interval_seconds":   int64(cfg.Interval.Seconds()),
		"max_runs":           cfg.MaxRuns,
		"max_window_seconds": int64(cfg.MaxWindow.Seconds()),
		"cooldown_seconds":   int64(cfg.Cooldown.Seconds()),
	})
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
