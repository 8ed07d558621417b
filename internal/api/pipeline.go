package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/energy"
	"github.com/ashureev/energy-pipeline/internal/objstore"
	"github.com/ashureev/energy-pipeline/internal/store"
)

// Simulator produces one data file.
type Simulator interface {
	Simulate(ctx context.Context) (string, error)
}

// PipelineHandler serves the backend endpoints: producing data files and
// reading processed records.
type PipelineHandler struct {
	sim     Simulator
	files   objstore.FileStore
	records store.RecordRepository
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(sim Simulator, files objstore.FileStore, records store.RecordRepository) *PipelineHandler {
	return &PipelineHandler{sim: sim, files: files, records: records}
}

// RegisterRoutes registers pipeline routes.
func (h *PipelineHandler) RegisterRoutes(r chi.Router) {
	r.Post("/simulatedata", h.SimulateData)
	r.Get("/file/{filename}", h.GetFile)
	r.Get("/records", h.GetRecords)
	r.Get("/anomalies/{site_id}", h.GetAnomalies)
	r.Get("/all-records", h.GetAllRecords)
}

// SimulateData produces and ingests one batch.
func (h *PipelineHandler) SimulateData(w http.ResponseWriter, r *http.Request) {
	filename, err := h.sim.Simulate(r.Context())
	if err != nil {
		slog.Error("Simulation failed", "error", err)
		Detail(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"filename": filename,
	})
}

// GetFile returns the raw contents of a data file.
func (h *PipelineHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, err := h.files.Get(r.Context(), name)
	switch {
	case errdefs.IsNotFound(err):
		Detail(w, http.StatusNotFound, "File not found: "+name)
		return
	case errdefs.IsInvalidArgument(err):
		Detail(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Failed to read data file", "filename", name, "error", err)
		Detail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write file response", "filename", name, "error", err)
	}
}

// GetRecords returns a site's records, optionally bounded by the start and
// end query parameters (ISO 8601, inclusive).
func (h *PipelineHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		Detail(w, http.StatusBadRequest, "site_id is required")
		return
	}

	start, ok := parseBound(r.URL.Query().Get("start"))
	if !ok {
		Detail(w, http.StatusBadRequest, "Invalid timestamp format. Use ISO 8601 format like '2025-06-01T00:00:00'")
		return
	}
	end, ok := parseBound(r.URL.Query().Get("end"))
	if !ok {
		Detail(w, http.StatusBadRequest, "Invalid timestamp format. Use ISO 8601 format like '2025-06-01T00:00:00'")
		return
	}

	records, err := h.records.RecordsBySite(r.Context(), siteID)
	if err != nil {
		slog.Error("Failed to query records", "site_id", siteID, "error", err)
		Detail(w, http.StatusInternalServerError, "failed to query records")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"records": filterRange(records, start, end),
	})
}

// GetAnomalies returns a site's anomalous records.
func (h *PipelineHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "site_id")
	records, err := h.records.AnomaliesBySite(r.Context(), siteID)
	if err != nil {
		slog.Error("Failed to query anomalies", "site_id", siteID, "error", err)
		Detail(w, http.StatusInternalServerError, "failed to query anomalies")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"anomalies": records})
}

// GetAllRecords returns every record.
func (h *PipelineHandler) GetAllRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.AllRecords(r.Context())
	if err != nil {
		slog.Error("Failed to query all records", "error", err)
		Detail(w, http.StatusInternalServerError, "failed to query records")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

var boundLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02",
}

// parseBound parses an optional range bound. An empty value is a valid,
// absent bound.
func parseBound(v string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func filterRange(records []domain.EnergyRecord, start, end *time.Time) []domain.EnergyRecord {
	if start == nil && end == nil {
		return records
	}
	out := make([]domain.EnergyRecord, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(energy.TimestampLayout, rec.Timestamp)
		if err != nil {
			if ts, err = time.Parse(time.RFC3339Nano, rec.Timestamp); err != nil {
				continue
			}
		}
		if start != nil && ts.Before(*start) {
			continue
		}
		if end != nil && ts.After(*end) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
