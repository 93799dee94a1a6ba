// ABOUTME: HTTP API handlers for the agent endpoint, health checks, and inspection routes.
// ABOUTME: Exposes clients, the pending queue, the dispatch ledger, and session management.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/pagepilot/internal/agent"
	"github.com/2389/pagepilot/internal/channel"
	"github.com/2389/pagepilot/internal/dispatch"
	"github.com/2389/pagepilot/internal/session"
	"github.com/2389/pagepilot/internal/store"
	"github.com/2389/pagepilot/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// StatusResponse is the body of GET / and GET /health.
type StatusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// ClientsResponse is the JSON response for GET /api/clients.
type ClientsResponse struct {
	Clients []channel.ClientInfo `json:"clients"`
	Count   int                  `json:"count"`
}

// PendingInvocation is one queued invocation as shown by GET /api/queue.
type PendingInvocation struct {
	ID         string       `json:"id"`
	ClientID   string       `json:"client_id"`
	RequestID  string       `json:"request_id"`
	Tool       string       `json:"tool"`
	Args       tools.Action `json:"args"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// QueueResponse is the JSON response for GET /api/queue.
type QueueResponse struct {
	Pending []PendingInvocation `json:"pending"`
	Count   int                 `json:"count"`
}

// DispatchesResponse is the JSON response for GET /api/clients/{client_id}/dispatches.
type DispatchesResponse struct {
	ClientID   string            `json:"client_id"`
	Dispatches []*store.Dispatch `json:"dispatches"`
}

// SessionsResponse is the JSON response for GET /api/sessions.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
	Count    int            `json:"count"`
}

// HistoryResponse is the JSON response for GET /api/sessions/{client_id}/history.
type HistoryResponse struct {
	ClientID  string         `json:"client_id"`
	SessionID string         `json:"session_id,omitempty"`
	Expired   bool           `json:"expired,omitempty"`
	Turns     []session.Turn `json:"turns"`
}

// SummaryResponse is the JSON response for GET /api/sessions/{client_id}/summary.
type SummaryResponse struct {
	ClientID string `json:"client_id"`
	Summary  string `json:"summary"`
}

// ClearResponse is the JSON response for DELETE /api/sessions/{client_id}.
type ClearResponse struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
}

// SweepResponse is the JSON response for POST /api/sessions/sweep.
type SweepResponse struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	mux.HandleFunc("POST /agent", g.handleAgent)
	mux.HandleFunc("GET /ws/{client_id}", g.handleWebSocket)

	mux.HandleFunc("GET /api/clients", g.handleListClients)
	mux.HandleFunc("GET /api/clients/{client_id}/dispatches", g.handleClientDispatches)
	mux.HandleFunc("GET /api/queue", g.handleQueue)

	mux.HandleFunc("GET /api/sessions", g.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{client_id}/history", g.handleSessionHistory)
	mux.HandleFunc("GET /api/sessions/{client_id}/summary", g.handleSessionSummary)
	mux.HandleFunc("DELETE /api/sessions/{client_id}", g.handleClearSession)
	mux.HandleFunc("POST /api/sessions/sweep", g.handleSweepSessions)
}

// handleRoot reports that the API is up.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, StatusResponse{Message: "Client-Side Tool Agent API is running"})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, StatusResponse{Status: "healthy", Message: "Backend is running"})
}

// handleReady returns 200 OK if the agent model is usable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if m, ok := g.model.(agent.UnavailableModel); ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "agent not initialized: %s", m.Reason)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d clients)", g.channels.Count())
}

// handleAgent handles POST /agent: run the agent for one query and deliver
// its tool invocations to the caller's page.
func (g *Gateway) handleAgent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := g.coordinator.Handle(r.Context(), req)
	switch {
	case errors.Is(err, dispatch.ErrEmptyQuery):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		g.logger.Error("agent request failed", "client_id", req.ClientID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, resp)
}

// handleListClients handles GET /api/clients.
func (g *Gateway) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients := g.channels.List()
	g.writeJSON(w, http.StatusOK, ClientsResponse{Clients: clients, Count: len(clients)})
}

// handleQueue handles GET /api/queue. Only deferred mode leaves anything
// to see between runs.
func (g *Gateway) handleQueue(w http.ResponseWriter, r *http.Request) {
	snapshot := g.queue.Snapshot()
	pending := make([]PendingInvocation, 0, len(snapshot))
	for _, inv := range snapshot {
		pending = append(pending, PendingInvocation{
			ID:         inv.ID,
			ClientID:   inv.ClientID,
			RequestID:  inv.RequestID,
			Tool:       inv.Tool(),
			Args:       inv.Action,
			EnqueuedAt: inv.EnqueuedAt,
		})
	}
	g.writeJSON(w, http.StatusOK, QueueResponse{Pending: pending, Count: len(pending)})
}

// handleClientDispatches handles GET /api/clients/{client_id}/dispatches.
// Supports ?limit=N and ?outcome=delivered|dropped|failed|stale.
func (g *Gateway) handleClientDispatches(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	filter := store.DispatchFilter{ClientID: &clientID}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("outcome"); v != "" {
		outcome := store.Outcome(v)
		if !validOutcome(outcome) {
			g.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown outcome %q", v))
			return
		}
		filter.Outcome = &outcome
	}

	dispatches, err := g.ledger.ListDispatches(r.Context(), filter)
	if err != nil {
		g.logger.Error("listing dispatches", "client_id", clientID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if dispatches == nil {
		dispatches = []*store.Dispatch{}
	}
	g.writeJSON(w, http.StatusOK, DispatchesResponse{ClientID: clientID, Dispatches: dispatches})
}

func validOutcome(o store.Outcome) bool {
	for _, v := range store.ValidOutcomes {
		if v == o {
			return true
		}
	}
	return false
}

// handleListSessions handles GET /api/sessions.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := g.sessions.List()
	g.writeJSON(w, http.StatusOK, SessionsResponse{Sessions: infos, Count: len(infos)})
}

// handleSessionHistory handles GET /api/sessions/{client_id}/history.
func (g *Gateway) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	info, ok := g.sessions.Info(clientID)
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	g.writeJSON(w, http.StatusOK, HistoryResponse{
		ClientID:  clientID,
		SessionID: info.SessionID,
		Expired:   info.Expired,
		Turns:     g.sessions.History(clientID),
	})
}

// handleSessionSummary handles GET /api/sessions/{client_id}/summary.
func (g *Gateway) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	g.writeJSON(w, http.StatusOK, SummaryResponse{
		ClientID: clientID,
		Summary:  g.sessions.Summary(clientID),
	})
}

// handleClearSession handles DELETE /api/sessions/{client_id}: the
// conversation is emptied and the session id rotated.
func (g *Gateway) handleClearSession(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if _, ok := g.sessions.Info(clientID); !ok {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	g.sessions.Clear(clientID)
	info, _ := g.sessions.Info(clientID)
	g.writeJSON(w, http.StatusOK, ClearResponse{ClientID: clientID, SessionID: info.SessionID})
}

// handleSweepSessions handles POST /api/sessions/sweep.
func (g *Gateway) handleSweepSessions(w http.ResponseWriter, r *http.Request) {
	removed := g.sessions.Sweep(time.Now())
	g.logger.Info("manual session sweep", "removed", removed)
	g.writeJSON(w, http.StatusOK, SweepResponse{Removed: removed, Remaining: g.sessions.Len()})
}

// writeJSON writes v as a JSON response with status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("writing response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
