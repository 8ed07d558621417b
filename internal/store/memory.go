package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory KV. It keeps encoded bytes so decoding behaves
// exactly like the SQLite store, including for malformed values.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty in-memory KV.
func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Load decodes the value stored under key into dst.
func (m *MemoryStore) Load(_ context.Context, key string, dst any) bool {
	m.mu.RLock()
	raw, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Save stores v under key as JSON.
func (m *MemoryStore) Save(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.SaveRaw(key, raw)
	return nil
}

// SaveRaw stores raw bytes under key without validating them.
func (m *MemoryStore) SaveRaw(key string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), raw...)
}

var _ KV = (*MemoryStore)(nil)
