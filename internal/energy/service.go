package energy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/metrics"
	"github.com/ashureev/energy-pipeline/internal/objstore"
	"github.com/ashureev/energy-pipeline/internal/store"
)

// Service produces one data file per Simulate call and ingests it.
type Service struct {
	files     objstore.FileStore
	records   store.RecordRepository
	metrics   *metrics.Metrics
	sites     []string
	batchSize int
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a simulation service.
func NewService(files objstore.FileStore, records store.RecordRepository, m *metrics.Metrics, sites []string, batchSize int) *Service {
	return &Service{
		files:     files,
		records:   records,
		metrics:   m,
		sites:     sites,
		batchSize: batchSize,
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Simulate generates a batch, uploads it and stores the processed records.
// It returns the uploaded file name.
func (s *Service) Simulate(ctx context.Context) (string, error) {
	now := s.now()

	s.mu.Lock()
	readings := Generate(now, s.sites, s.batchSize, s.rng)
	s.mu.Unlock()

	body, err := json.Marshal(readings)
	if err != nil {
		return "", fmt.Errorf("encode readings: %w", err)
	}

	filename := Filename(now)
	if err := s.files.Put(ctx, filename, body); err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	s.metrics.FileProduced()
	slog.Info("Uploaded data file", "filename", filename, "readings", len(readings))

	if err := s.Ingest(ctx, filename, readings); err != nil {
		return "", err
	}
	return filename, nil
}

// Ingest processes readings from a data file and stores the results.
func (s *Service) Ingest(ctx context.Context, filename string, readings []domain.Reading) error {
	records := Process(readings, filename)
	if err := s.records.UpsertRecords(ctx, records); err != nil {
		return fmt.Errorf("store records from %s: %w", filename, err)
	}
	s.metrics.RecordsProcessed(len(records))

	for _, r := range records {
		if !r.Anomaly {
			continue
		}
		s.metrics.AnomalyDetected(r.SiteID)
		slog.Warn("Anomaly detected",
			"site_id", r.SiteID,
			"timestamp", r.Timestamp,
			"energy_generated_kwh", r.EnergyGeneratedKWh,
			"energy_consumed_kwh", r.EnergyConsumedKWh,
			"source_file", filename,
		)
	}
	return nil
}
