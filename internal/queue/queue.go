// ABOUTME: Process-wide FIFO of pending tool invocations tagged with client and request.
// ABOUTME: Drain hands out atomic snapshots as one-shot iterators.

package queue

import (
	"encoding/json"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pagepilot/internal/tools"
)

// Invocation is one queued tool request. Immutable once enqueued.
type Invocation struct {
	ID         string
	ClientID   string
	RequestID  string
	Action     tools.Action
	EnqueuedAt time.Time
}

// Tool returns the tool name of the invocation.
func (inv Invocation) Tool() string {
	return inv.Action.ToolName()
}

// Message is the outbound dispatch message sent to the browser.
type Message struct {
	Tool      string       `json:"tool"`
	Args      tools.Action `json:"args"`
	Timestamp string       `json:"timestamp"`
}

// Encode renders the invocation as its outbound JSON message.
func (inv Invocation) Encode() ([]byte, error) {
	return json.Marshal(Message{
		Tool:      inv.Tool(),
		Args:      inv.Action,
		Timestamp: inv.EnqueuedAt.Format(time.RFC3339Nano),
	})
}

// Queue is a mutex-guarded FIFO shared by every in-flight request.
type Queue struct {
	mu     sync.Mutex
	items  []Invocation
	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty queue. Pass nil logger for default.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		now:    time.Now,
		logger: logger.With("component", "queue"),
	}
}

// Enqueue appends an invocation and returns it with ID and timestamp set.
func (q *Queue) Enqueue(clientID, requestID string, action tools.Action) Invocation {
	inv := Invocation{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		RequestID:  requestID,
		Action:     action,
		EnqueuedAt: q.now().UTC(),
	}

	q.mu.Lock()
	q.items = append(q.items, inv)
	depth := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("invocation queued",
		"client_id", clientID,
		"request_id", requestID,
		"tool", inv.Tool(),
		"depth", depth,
	)
	return inv
}

// Drain removes every queued invocation and yields them in FIFO order.
func (q *Queue) Drain() iter.Seq[Invocation] {
	q.mu.Lock()
	taken := q.items
	q.items = nil
	q.mu.Unlock()

	return once(taken)
}

// DrainFor removes the invocations addressed to clientID and yields them in
// FIFO order. Invocations for other clients keep their relative order.
func (q *Queue) DrainFor(clientID string) iter.Seq[Invocation] {
	return q.DrainFunc(func(inv Invocation) bool { return inv.ClientID == clientID })
}

// DrainFunc removes the invocations for which match reports true and yields
// them in FIFO order. The rest stay queued in their original order. match
// runs under the queue lock and must not call back into the queue.
func (q *Queue) DrainFunc(match func(Invocation) bool) iter.Seq[Invocation] {
	q.mu.Lock()
	var taken []Invocation
	kept := q.items[:0:0]
	for _, inv := range q.items {
		if match(inv) {
			taken = append(taken, inv)
		} else {
			kept = append(kept, inv)
		}
	}
	q.items = kept
	q.mu.Unlock()

	return once(taken)
}

// Len returns the number of pending invocations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending invocations without removing them.
func (q *Queue) Snapshot() []Invocation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Invocation(nil), q.items...)
}

// once yields items on the first iteration only.
func once(items []Invocation) iter.Seq[Invocation] {
	var used atomic.Bool
	return func(yield func(Invocation) bool) {
		if used.Swap(true) {
			return
		}
		for _, inv := range items {
			if !yield(inv) {
				return
			}
		}
	}
}
