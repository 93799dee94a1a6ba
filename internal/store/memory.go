// ABOUTME: In-memory DispatchLog that keeps the most recent entries.
// ABOUTME: Default ledger when SQLite auditing is off; also used in tests.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity is the MemoryStore size when none is given.
const DefaultMemoryCapacity = 1000

// MemoryStore is a bounded DispatchLog. The oldest entries are evicted once
// capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*Dispatch
	capacity int
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// RecordDispatch implements DispatchLog.
func (m *MemoryStore) RecordDispatch(_ context.Context, d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	cp := *d

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &cp)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

// ListDispatches implements DispatchLog.
func (m *MemoryStore) ListDispatches(_ context.Context, f DispatchFilter) ([]*Dispatch, error) {
	limit := normalizeLimit(f.Limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Dispatch
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.matches(m.entries[i]) {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close implements DispatchLog.
func (m *MemoryStore) Close() error {
	return nil
}
