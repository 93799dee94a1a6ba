// ABOUTME: Tracks attached browser channels keyed by client identity.
// ABOUTME: Central point for delivering outbound messages to a live client.

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrChannelAbsent indicates no live channel is attached for the client.
var ErrChannelAbsent = errors.New("channel absent")

// ErrTransportWrite indicates the channel failed while writing a message.
var ErrTransportWrite = errors.New("transport write failed")

// Channel is a live, ordered, full-duplex connection to exactly one client.
type Channel interface {
	// Send writes one message. Implementations must serialize writes.
	Send(ctx context.Context, msg []byte) error

	// Close terminates the connection with a human-readable reason.
	Close(reason string) error
}

// ClientInfo describes an attached client.
type ClientInfo struct {
	ClientID    string    `json:"client_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

type entry struct {
	ch          Channel
	connectedAt time.Time
}

// Registry maps client identities to their current channel.
type Registry struct {
	channels map[string]*entry
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		channels: make(map[string]*entry),
		logger:   logger.With("component", "channels"),
	}
}

// Attach registers ch for clientID, replacing any existing entry.
// The replaced channel, if any, is returned so the caller can close it.
func (r *Registry) Attach(clientID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous Channel
	if old, exists := r.channels[clientID]; exists {
		previous = old.ch
	}

	r.channels[clientID] = &entry{ch: ch, connectedAt: time.Now()}
	r.logger.Info("=== CLIENT CONNECTED ===",
		"client_id", clientID,
		"replaced", previous != nil,
		"total_clients", len(r.channels),
	)
	return previous
}

// Detach removes the entry for clientID. No-op when absent.
func (r *Registry) Detach(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[clientID]; exists {
		delete(r.channels, clientID)
		r.logger.Info("=== CLIENT DISCONNECTED ===",
			"client_id", clientID,
			"total_clients", len(r.channels),
		)
	}
}

// DetachIf removes the entry for clientID only while it still refers to ch.
// Returns true if an entry was removed.
func (r *Registry) DetachIf(clientID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.channels[clientID]
	if !exists || current.ch != ch {
		return false
	}
	delete(r.channels, clientID)
	r.logger.Info("=== CLIENT DISCONNECTED ===",
		"client_id", clientID,
		"total_clients", len(r.channels),
	)
	return true
}

// Get returns the current channel for clientID.
func (r *Registry) Get(clientID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.channels[clientID]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Send writes msg to the client's channel.
// Returns ErrChannelAbsent when nothing is attached, or an error wrapping
// ErrTransportWrite when the write failed. A failed channel is detached.
func (r *Registry) Send(ctx context.Context, clientID string, msg []byte) error {
	ch, ok := r.Get(clientID)
	if !ok {
		return ErrChannelAbsent
	}

	if err := ch.Send(ctx, msg); err != nil {
		r.DetachIf(clientID, ch)
		r.logger.Warn("write failed, channel detached",
			"client_id", clientID,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrTransportWrite, err)
	}
	return nil
}

// Deliver sends msg to clientID and reports whether it was written.
// It never returns an error; absence and write failures both yield false.
func (r *Registry) Deliver(ctx context.Context, clientID string, msg []byte) bool {
	return r.Send(ctx, clientID, msg) == nil
}

// Count returns the number of attached clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// List returns the attached clients ordered by client ID.
func (r *Registry) List() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]ClientInfo, 0, len(r.channels))
	for id, e := range r.channels {
		clients = append(clients, ClientInfo{ClientID: id, ConnectedAt: e.connectedAt})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })
	return clients
}

// CloseAll removes every attached channel and closes them concurrently.
// It returns once all closes finish or ctx is done, whichever comes first;
// closes still waiting on a peer then finish in the background.
func (r *Registry) CloseAll(ctx context.Context, reason string) {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*entry)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for id, e := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.ch.Close(reason); err != nil {
				r.logger.Debug("closing channel", "client_id", id, "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all channels closed", "count", len(channels))
	case <-ctx.Done():
		r.logger.Warn("channels still closing at deadline", "count", len(channels), "error", ctx.Err())
	}
}
