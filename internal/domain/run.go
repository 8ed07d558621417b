// Package domain contains core domain types for the energy simulation pipeline.
package domain

import (
	"time"
)

// RunRecord describes one data file produced by a successful simulation run.
// Records are never mutated once created.
type RunRecord struct {
	Filename   string    `json:"filename"`
	ProducedAt time.Time `json:"timestamp"`
}
