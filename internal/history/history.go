// Package history keeps the append-only list of files produced by
// successful simulation runs.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/store"
)

// Key is the persisted key holding the serialized history, newest first.
const Key = "simulatedFiles"

// History is a newest-first list of run records backed by a KV store.
type History struct {
	mu sync.Mutex // serializes read-modify-write in Append
	kv store.KV
}

// New returns a History persisted in kv.
func New(kv store.KV) *History {
	return &History{kv: kv}
}

// Append inserts rec at the front and persists the full list.
func (h *History) Append(ctx context.Context, rec domain.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := h.load(ctx)
	updated := make([]domain.RunRecord, 0, len(records)+1)
	updated = append(updated, rec)
	updated = append(updated, records...)

	if err := h.kv.Save(ctx, Key, updated); err != nil {
		return fmt.Errorf("append %s to history: %w", rec.Filename, err)
	}
	return nil
}

// All returns the persisted records, newest first. Absent or malformed
// history reads as empty.
func (h *History) All(ctx context.Context) []domain.RunRecord {
	return h.load(ctx)
}

func (h *History) load(ctx context.Context) []domain.RunRecord {
	var records []domain.RunRecord
	if !h.kv.Load(ctx, Key, &records) || records == nil {
		return []domain.RunRecord{}
	}
	return records
}
