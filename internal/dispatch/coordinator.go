// ABOUTME: Coordinator runs an agent request: load session, run the agent,
// ABOUTME: record turns, and drain the client's queued invocations to its channel.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pagepilot/internal/agent"
	"github.com/2389/pagepilot/internal/channel"
	"github.com/2389/pagepilot/internal/queue"
	"github.com/2389/pagepilot/internal/session"
	"github.com/2389/pagepilot/internal/store"
	"github.com/2389/pagepilot/internal/tools"
)

var (
	// ErrAgentFailure wraps every error from the agent run.
	ErrAgentFailure = errors.New("agent failure")
	// ErrEmptyQuery rejects requests without a query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrNoClient rejects direct invocations without a client id.
	ErrNoClient = errors.New("client_id is required")
)

// Mode selects when invocations are delivered.
type Mode string

const (
	// ModeDeferred delivers after the agent run finishes.
	ModeDeferred Mode = "deferred"
	// ModeImmediate delivers as each invocation is enqueued.
	ModeImmediate Mode = "immediate"
)

// DefaultTimeout bounds one agent run.
const DefaultTimeout = 120 * time.Second

// Runner runs the agent loop. *agent.Loop satisfies it.
type Runner interface {
	Run(ctx context.Context, in agent.Input, exec agent.ToolExecutor) (*agent.Result, error)
}

// Options configures a Coordinator.
type Options struct {
	Mode         Mode
	DiscardStale bool
	Timeout      time.Duration
}

// DefaultOptions returns deferred delivery with stale discard on.
func DefaultOptions() Options {
	return Options{
		Mode:         ModeDeferred,
		DiscardStale: true,
		Timeout:      DefaultTimeout,
	}
}

// Deps are the collaborators a Coordinator drives.
type Deps struct {
	Sessions *session.Store
	Queue    *queue.Queue
	Channels *channel.Registry
	Runner   Runner
	// Ledger records invocation outcomes. Nil uses an in-memory ledger.
	Ledger store.DispatchLog
}

// Request is one POST /agent body.
type Request struct {
	Query    string `json:"query"`
	ClientID string `json:"client_id,omitempty"`
}

// Report counts invocation outcomes for one request.
type Report struct {
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
	Stale     int `json:"stale"`
}

func (r *Report) add(o store.Outcome) {
	switch o {
	case store.OutcomeDelivered:
		r.Delivered++
	case store.OutcomeDropped:
		r.Dropped++
	case store.OutcomeFailed:
		r.Failed++
	case store.OutcomeStale:
		r.Stale++
	}
}

// Response is the result of a successful request.
type Response struct {
	Content   string `json:"content"`
	RequestID string `json:"request_id"`
	Report    Report `json:"-"`
}

// Coordinator wires the session store, queue, and channel registry around
// an agent Runner. Safe for concurrent use.
type Coordinator struct {
	sessions *session.Store
	queue    *queue.Queue
	channels *channel.Registry
	runner   Runner
	ledger   store.DispatchLog
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]string // request id -> client id
}

// NewCoordinator creates a coordinator. Zero option fields take defaults,
// except DiscardStale which is used as given.
func NewCoordinator(deps Deps, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeDeferred
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = store.NewMemoryStore(0)
	}
	return &Coordinator{
		sessions: deps.Sessions,
		queue:    deps.Queue,
		channels: deps.Channels,
		runner:   deps.Runner,
		ledger:   ledger,
		opts:     opts,
		logger:   logger.With("component", "dispatch"),
		active:   make(map[string]string),
	}
}

// Options returns the effective settings.
func (c *Coordinator) Options() Options {
	return c.opts
}

// Ledger returns the dispatch ledger outcomes are recorded to.
func (c *Coordinator) Ledger() store.DispatchLog {
	return c.ledger
}

// run is the per-request state.
type run struct {
	c      *Coordinator
	scope  Scope
	state  State
	report Report
	logger *slog.Logger
}

func (r *run) to(next State) {
	r.logger.Debug("dispatch state", "from", r.state, "to", next)
	r.state = next
}

// Execute implements agent.ToolExecutor. The target client comes from the
// Scope in ctx.
func (r *run) Execute(ctx context.Context, call agent.ToolCall) (string, error) {
	action, err := tools.Parse(call.Name, call.Arguments)
	if err != nil {
		return "", err
	}

	scope, ok := ScopeFrom(ctx)
	if !ok || scope.ClientID == "" {
		r.logger.Debug("no client for tool call, not queued", "tool", call.Name)
		return action.Ack(), nil
	}

	r.c.queue.Enqueue(scope.ClientID, scope.RequestID, action)
	if r.c.opts.Mode == ModeImmediate {
		r.c.deliverRequest(ctx, scope, &r.report)
	}
	return action.Ack(), nil
}

// Handle runs one agent request to completion.
func (c *Coordinator) Handle(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	scope := Scope{
		ClientID:  strings.TrimSpace(req.ClientID),
		RequestID: uuid.New().String(),
	}
	r := &run{
		c:      c,
		scope:  scope,
		state:  StateIdle,
		logger: c.logger.With("request_id", scope.RequestID, "client_id", scope.ClientID),
	}

	c.begin(scope)
	defer c.end(scope)

	in := agent.Input{Query: query}
	if scope.ClientID != "" {
		sessionID := c.sessions.GetOrCreate(scope.ClientID)
		in.History = toMessages(c.sessions.History(scope.ClientID))
		in.Summary = c.sessions.Summary(scope.ClientID)
		r.logger = r.logger.With("session_id", sessionID)
	}
	r.to(StateContextLoaded)

	runCtx, cancel := context.WithTimeout(WithScope(ctx, scope), c.opts.Timeout)
	defer cancel()

	r.to(StateAgentRunning)
	result, err := c.runner.Run(runCtx, in, r)
	if err != nil {
		r.to(StateFailed)
		r.logger.Error("agent run failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAgentFailure, err)
	}

	r.to(StateQueueDraining)
	if scope.ClientID != "" {
		c.sessions.Append(scope.ClientID, session.RoleUser, query)
		c.sessions.Append(scope.ClientID, session.RoleAgent, result.Text)
		c.drainClient(ctx, scope, &r.report)
	}
	r.to(StateDone)

	r.logger.Info("agent request complete",
		"steps", result.Steps,
		"tool_calls", result.ToolCalls,
		"delivered", r.report.Delivered,
		"dropped", r.report.Dropped,
		"failed", r.report.Failed,
		"stale", r.report.Stale,
	)
	return &Response{
		Content:   result.Text,
		RequestID: scope.RequestID,
		Report:    r.report,
	}, nil
}

// Invoke enqueues action for clientID and delivers it right away, outside
// any agent run.
func (c *Coordinator) Invoke(ctx context.Context, clientID string, action tools.Action) (store.Outcome, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", ErrNoClient
	}
	if err := action.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", tools.ErrInvalidArguments, action.ToolName(), err)
	}

	scope := Scope{ClientID: clientID, RequestID: uuid.New().String()}
	c.queue.Enqueue(scope.ClientID, scope.RequestID, action)

	var report Report
	c.deliverRequest(ctx, scope, &report)
	switch {
	case report.Delivered > 0:
		return store.OutcomeDelivered, nil
	case report.Dropped > 0:
		return store.OutcomeDropped, nil
	default:
		return store.OutcomeFailed, nil
	}
}

func (c *Coordinator) begin(s Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[s.RequestID] = s.ClientID
}

func (c *Coordinator) end(s Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, s.RequestID)
}

func (c *Coordinator) isActive(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[requestID]
	return ok
}

// drainClient takes this request's invocations plus leftovers from requests
// that are no longer running. Other in-flight requests keep theirs.
func (c *Coordinator) drainClient(ctx context.Context, s Scope, report *Report) {
	pending := c.queue.DrainFunc(func(inv queue.Invocation) bool {
		if inv.ClientID != s.ClientID {
			return false
		}
		return inv.RequestID == s.RequestID || !c.isActive(inv.RequestID)
	})

	for inv := range pending {
		if inv.RequestID != s.RequestID && c.opts.DiscardStale {
			c.logger.Warn("discarding stale invocation",
				"client_id", inv.ClientID,
				"tool", inv.Tool(),
				"origin_request_id", inv.RequestID,
				"request_id", s.RequestID,
			)
			c.record(ctx, inv, store.OutcomeStale, nil)
			report.add(store.OutcomeStale)
			continue
		}
		report.add(c.deliver(ctx, inv))
	}
}

// deliverRequest delivers only the invocations enqueued under s.
func (c *Coordinator) deliverRequest(ctx context.Context, s Scope, report *Report) {
	pending := c.queue.DrainFunc(func(inv queue.Invocation) bool {
		return inv.RequestID == s.RequestID
	})
	for inv := range pending {
		report.add(c.deliver(ctx, inv))
	}
}

// deliver makes one delivery attempt. Request cancellation must not abort
// a write half way and detach a healthy channel, so the write ignores it.
func (c *Coordinator) deliver(ctx context.Context, inv queue.Invocation) store.Outcome {
	ctx = context.WithoutCancel(ctx)

	msg, err := inv.Encode()
	if err != nil {
		c.logger.Error("encoding invocation", "tool", inv.Tool(), "error", err)
		c.record(ctx, inv, store.OutcomeFailed, err)
		return store.OutcomeFailed
	}

	err = c.channels.Send(ctx, inv.ClientID, msg)
	outcome := store.OutcomeDelivered
	switch {
	case err == nil:
		c.logger.Debug("invocation delivered", "client_id", inv.ClientID, "tool", inv.Tool(), "request_id", inv.RequestID)
	case errors.Is(err, channel.ErrChannelAbsent):
		outcome = store.OutcomeDropped
		c.logger.Warn("no live channel, invocation dropped", "client_id", inv.ClientID, "tool", inv.Tool(), "request_id", inv.RequestID)
	default:
		outcome = store.OutcomeFailed
		c.logger.Warn("invocation delivery failed", "client_id", inv.ClientID, "tool", inv.Tool(), "error", err)
	}
	c.record(ctx, inv, outcome, err)
	return outcome
}

func (c *Coordinator) record(ctx context.Context, inv queue.Invocation, outcome store.Outcome, cause error) {
	args, err := json.Marshal(inv.Action)
	if err != nil {
		args = []byte("{}")
	}
	d := &store.Dispatch{
		InvocationID: inv.ID,
		RequestID:    inv.RequestID,
		ClientID:     inv.ClientID,
		Tool:         inv.Tool(),
		Args:         string(args),
		Outcome:      outcome,
		EnqueuedAt:   inv.EnqueuedAt,
	}
	if cause != nil && outcome != store.OutcomeDelivered {
		d.Error = cause.Error()
	}
	if err := c.ledger.RecordDispatch(ctx, d); err != nil {
		c.logger.Warn("recording dispatch", "invocation_id", inv.ID, "error", err)
	}
}

func toMessages(turns []session.Turn) []agent.Message {
	out := make([]agent.Message, 0, len(turns))
	for _, t := range turns {
		role := agent.RoleUser
		switch t.Role {
		case session.RoleAgent:
			role = agent.RoleAssistant
		case session.RoleSystem:
			role = agent.RoleSystem
		}
		out = append(out, agent.Message{Role: role, Content: t.Text})
	}
	return out
}
