// ABOUTME: Dispatch ledger types and the DispatchLog interface.
// ABOUTME: Shared by the SQLite and in-memory implementations.

package store

import (
	"context"
	"time"
)

// Outcome is what happened to one invocation.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeDropped   Outcome = "dropped"
	OutcomeFailed    Outcome = "failed"
	OutcomeStale     Outcome = "stale"
)

// ValidOutcomes lists every Outcome.
var ValidOutcomes = []Outcome{OutcomeDelivered, OutcomeDropped, OutcomeFailed, OutcomeStale}

// Dispatch is one ledger entry.
type Dispatch struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	RequestID    string    `json:"request_id"`
	ClientID     string    `json:"client_id"`
	Tool         string    `json:"tool"`
	Args         string    `json:"args"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// DispatchFilter narrows ListDispatches.
type DispatchFilter struct {
	ClientID  *string
	RequestID *string
	Outcome   *Outcome
	Since     *time.Time
	Limit     int // default 100, max 1000
}

// DispatchLog persists dispatch outcomes.
type DispatchLog interface {
	// RecordDispatch appends an entry. ID and CreatedAt are set when empty.
	RecordDispatch(ctx context.Context, d *Dispatch) error
	// ListDispatches returns matching entries, newest first.
	ListDispatches(ctx context.Context, f DispatchFilter) ([]*Dispatch, error)
	Close() error
}

// normalizeLimit applies default (100) and cap (1000).
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func (f DispatchFilter) matches(d *Dispatch) bool {
	if f.ClientID != nil && d.ClientID != *f.ClientID {
		return false
	}
	if f.RequestID != nil && d.RequestID != *f.RequestID {
		return false
	}
	if f.Outcome != nil && d.Outcome != *f.Outcome {
		return false
	}
	if f.Since != nil && d.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}
