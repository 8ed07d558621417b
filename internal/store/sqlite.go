package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS energy_records (
		site_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		energy_generated_kwh REAL NOT NULL,
		energy_consumed_kwh REAL NOT NULL,
		net_energy_kwh REAL NOT NULL,
		anomaly INTEGER NOT NULL DEFAULT 0,
		source_file TEXT,
		PRIMARY KEY (site_id, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_energy_records_anomaly ON energy_records(site_id) WHERE anomaly = 1;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Load decodes the value stored under key into dst.
func (s *SQLiteStore) Load(ctx context.Context, key string, dst any) bool {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		slog.Warn("Failed to read persisted value", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("Ignoring malformed persisted value", "key", key, "error", err)
		return false
	}
	return true
}

// Save stores v under key as JSON.
func (s *SQLiteStore) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.saveRaw(ctx, key, raw)
}

func (s *SQLiteStore) saveRaw(ctx context.Context, key string, raw []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query, key, string(raw), time.Now().Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// UpsertRecords inserts records in a single transaction.
func (s *SQLiteStore) UpsertRecords(ctx context.Context, records []domain.EnergyRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
	INSERT INTO energy_records (
		site_id, timestamp, energy_generated_kwh, energy_consumed_kwh,
		net_energy_kwh, anomaly, source_file
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(site_id, timestamp) DO UPDATE SET
		energy_generated_kwh = excluded.energy_generated_kwh,
		energy_consumed_kwh = excluded.energy_consumed_kwh,
		net_energy_kwh = excluded.net_energy_kwh,
		anomaly = excluded.anomaly,
		source_file = excluded.source_file`

	return shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back records transaction", "error", rbErr)
			}
		}()

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer func() {
			if closeErr := stmt.Close(); closeErr != nil {
				slog.Warn("failed to close upsert statement", "error", closeErr)
			}
		}()

		for _, r := range records {
			var source interface{}
			if r.SourceFile != "" {
				source = r.SourceFile
			}
			if _, err := stmt.ExecContext(ctx,
				r.SiteID, r.Timestamp, r.EnergyGeneratedKWh, r.EnergyConsumedKWh,
				r.NetEnergyKWh, r.Anomaly, source,
			); err != nil {
				return fmt.Errorf("upsert record %s@%s: %w", r.SiteID, r.Timestamp, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit records: %w", err)
		}
		return nil
	})
}

const recordColumns = `site_id, timestamp, energy_generated_kwh, energy_consumed_kwh,
		net_energy_kwh, anomaly, source_file`

// RecordsBySite returns all records for a site.
func (s *SQLiteStore) RecordsBySite(ctx context.Context, siteID string) ([]domain.EnergyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM energy_records WHERE site_id = ? ORDER BY timestamp`
	return s.queryRecords(ctx, query, siteID)
}

// AnomaliesBySite returns the anomalous records for a site.
func (s *SQLiteStore) AnomaliesBySite(ctx context.Context, siteID string) ([]domain.EnergyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM energy_records WHERE site_id = ? AND anomaly = 1 ORDER BY timestamp`
	return s.queryRecords(ctx, query, siteID)
}

// AllRecords returns every stored record.
func (s *SQLiteStore) AllRecords(ctx context.Context) ([]domain.EnergyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM energy_records ORDER BY site_id, timestamp`
	return s.queryRecords(ctx, query)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]domain.EnergyRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close records rows", "error", closeErr)
		}
	}()

	records := []domain.EnergyRecord{}
	for rows.Next() {
		var r domain.EnergyRecord
		var source sql.NullString
		if err := rows.Scan(
			&r.SiteID, &r.Timestamp, &r.EnergyGeneratedKWh, &r.EnergyConsumedKWh,
			&r.NetEnergyKWh, &r.Anomaly, &source,
		); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		r.SourceFile = source.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

var _ Repository = (*SQLiteStore)(nil)
