// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/energy-pipeline/internal/domain"
)

// KV persists JSON-serializable values by key. Last write wins.
type KV interface {
	// Load decodes the value stored under key into dst. It reports false when
	// the key is absent or the stored data is unreadable or malformed; callers
	// treat both the same as a value that was never written.
	Load(ctx context.Context, key string, dst any) bool

	// Save JSON-encodes v and stores it under key, replacing any previous value.
	Save(ctx context.Context, key string, v any) error
}

// RecordRepository persists processed energy records.
type RecordRepository interface {
	// UpsertRecords inserts records, replacing any existing record for the
	// same site and timestamp.
	UpsertRecords(ctx context.Context, records []domain.EnergyRecord) error

	// RecordsBySite returns all records for a site ordered by timestamp.
	RecordsBySite(ctx context.Context, siteID string) ([]domain.EnergyRecord, error)

	// AnomaliesBySite returns the anomalous records for a site.
	AnomaliesBySite(ctx context.Context, siteID string) ([]domain.EnergyRecord, error)

	// AllRecords returns every stored record.
	AllRecords(ctx context.Context) ([]domain.EnergyRecord, error)
}

// Repository is the full SQLite-backed persistence surface.
type Repository interface {
	KV
	RecordRepository

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
