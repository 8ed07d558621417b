// Package energy generates simulated meter readings and turns them into
// processed records with net energy and anomaly flags.
package energy

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ashureev/energy-pipeline/internal/domain"
)

// Value ranges for simulated readings. Generation may dip below zero so that
// some batches contain anomalies.
const (
	MinGenerated = -10.0
	MaxGenerated = 100.0
	MinConsumed  = 0.0
	MaxConsumed  = 90.0
)

// TimestampLayout is the UTC timestamp format written into readings.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Generate produces batchSize readings per site at now. Entries within a
// batch are spaced a microsecond apart so that each keeps a distinct key.
func Generate(now time.Time, sites []string, batchSize int, rng *rand.Rand) []domain.Reading {
	if batchSize < 1 {
		batchSize = 1
	}
	now = now.UTC()

	readings := make([]domain.Reading, 0, len(sites)*batchSize)
	for i := 0; i < batchSize; i++ {
		ts := now.Add(time.Duration(i) * time.Microsecond).Format(TimestampLayout)
		for _, site := range sites {
			readings = append(readings, domain.Reading{
				SiteID:             site,
				Timestamp:          ts,
				EnergyGeneratedKWh: round2(uniform(rng, MinGenerated, MaxGenerated)),
				EnergyConsumedKWh:  round2(uniform(rng, MinConsumed, MaxConsumed)),
			})
		}
	}
	return readings
}

// Process derives records from readings. Readings without a site or
// timestamp are skipped.
func Process(readings []domain.Reading, sourceFile string) []domain.EnergyRecord {
	records := make([]domain.EnergyRecord, 0, len(readings))
	for _, r := range readings {
		if r.SiteID == "" || r.Timestamp == "" {
			continue
		}
		records = append(records, domain.EnergyRecord{
			SiteID:             r.SiteID,
			Timestamp:          r.Timestamp,
			EnergyGeneratedKWh: r.EnergyGeneratedKWh,
			EnergyConsumedKWh:  r.EnergyConsumedKWh,
			NetEnergyKWh:       round2(r.EnergyGeneratedKWh - r.EnergyConsumedKWh),
			Anomaly:            r.EnergyGeneratedKWh < 0 || r.EnergyConsumedKWh < 0,
			SourceFile:         sourceFile,
		})
	}
	return records
}

// ParseReadings decodes a data file.
func ParseReadings(data []byte) ([]domain.Reading, error) {
	var readings []domain.Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return readings, nil
}

// Filename returns the data file name for a batch produced at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("energy_data_%d.json", t.Unix())
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
