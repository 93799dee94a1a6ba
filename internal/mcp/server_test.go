// ABOUTME: Tests for the MCP server over a real Streamable HTTP client session.
// ABOUTME: Covers tool listing, client_id routing, delivery outcomes, and helper tools.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pagepilot/internal/channel"
	"github.com/2389/pagepilot/internal/store"
	"github.com/2389/pagepilot/internal/tools"
)

type invocation struct {
	clientID string
	action   tools.Action
}

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []invocation
	outcome store.Outcome
	err     error
}

func (f *fakeInvoker) Invoke(_ context.Context, clientID string, action tools.Action) (store.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{clientID: clientID, action: action})
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}

func (f *fakeInvoker) recorded() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invocation(nil), f.calls...)
}

type fakeClients []channel.ClientInfo

func (f fakeClients) List() []channel.ClientInfo { return f }

type fakeSummaries map[string]string

func (f fakeSummaries) Summary(clientID string) string {
	if s, ok := f[clientID]; ok {
		return s
	}
	return "No previous conversation history."
}

func connect(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: httpServer.URL}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text, result.IsError
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Config{Clients: fakeClients{}})
	assert.Error(t, err)

	_, err = NewServer(Config{Invoker: &fakeInvoker{}})
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, Config{
		Invoker:  &fakeInvoker{outcome: store.OutcomeDelivered},
		Clients:  fakeClients{},
		Sessions: fakeSummaries{},
	})

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	byName := make(map[string]*mcp.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		byName[tool.Name] = tool
	}
	for _, name := range tools.Names() {
		require.Contains(t, byName, name)
	}
	assert.Contains(t, byName, ListClientsName)
	assert.Contains(t, byName, SessionSummaryName)

	// Browser tools must require client_id alongside their own arguments.
	raw, err := json.Marshal(byName[tools.FillInputName].InputSchema)
	require.NoError(t, err)
	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Contains(t, schema.Properties, "client_id")
	assert.Contains(t, schema.Properties, "selector")
	assert.Equal(t, []string{"client_id", "selector", "value"}, schema.Required)
}

func TestServer_SummaryToolOptional(t *testing.T) {
	session := connect(t, Config{Invoker: &fakeInvoker{}, Clients: fakeClients{}})

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	for _, tool := range result.Tools {
		assert.NotEqual(t, SessionSummaryName, tool.Name)
	}
}

func TestServer_BrowserToolDelivered(t *testing.T) {
	invoker := &fakeInvoker{outcome: store.OutcomeDelivered}
	session := connect(t, Config{Invoker: invoker, Clients: fakeClients{}})

	text, isErr := callTool(t, session, tools.NavigateToPageName, map[string]any{
		"client_id": "tab-1",
		"path":      "/contact",
	})
	assert.False(t, isErr)
	assert.Equal(t, "Navigating to /contact", text)

	calls := invoker.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "tab-1", calls[0].clientID)
	nav, ok := calls[0].action.(*tools.NavigateToPage)
	require.True(t, ok)
	assert.Equal(t, "/contact", nav.Path)
}

func TestServer_BrowserToolAppliesDefaults(t *testing.T) {
	invoker := &fakeInvoker{outcome: store.OutcomeDelivered}
	session := connect(t, Config{Invoker: invoker, Clients: fakeClients{}})

	_, isErr := callTool(t, session, tools.HighlightElementName, map[string]any{
		"client_id": "tab-1",
		"selector":  "#hero",
	})
	require.False(t, isErr)

	calls := invoker.recorded()
	require.Len(t, calls, 1)
	hl := calls[0].action.(*tools.HighlightElement)
	assert.Equal(t, tools.DefaultHighlightDuration, hl.Duration)
}

func TestServer_BrowserToolOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		invoker  *fakeInvoker
		wantText string
	}{
		{"dropped", &fakeInvoker{outcome: store.OutcomeDropped}, "client tab-9 is not connected"},
		{"failed", &fakeInvoker{outcome: store.OutcomeFailed}, "delivery to client tab-9 failed"},
		{"invoker error", &fakeInvoker{err: errors.New("boom")}, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := connect(t, Config{Invoker: tt.invoker, Clients: fakeClients{}})
			text, isErr := callTool(t, session, tools.ClickElementName, map[string]any{
				"client_id": "tab-9",
				"selector":  "#agent-submit",
			})
			assert.True(t, isErr)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestServer_BrowserToolRejectsBadInput(t *testing.T) {
	invoker := &fakeInvoker{outcome: store.OutcomeDelivered}
	session := connect(t, Config{Invoker: invoker, Clients: fakeClients{}})

	text, isErr := callTool(t, session, tools.ClickElementName, map[string]any{"selector": "#a"})
	assert.True(t, isErr)
	assert.Contains(t, text, "client_id is required")

	text, isErr = callTool(t, session, tools.ClickElementName, map[string]any{"client_id": "tab-1"})
	assert.True(t, isErr)
	assert.Contains(t, text, "selector")

	assert.Empty(t, invoker.recorded(), "invalid calls must not reach the page")
}

func TestServer_ListClients(t *testing.T) {
	connectedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := connect(t, Config{
		Invoker: &fakeInvoker{},
		Clients: fakeClients{{ClientID: "tab-1", ConnectedAt: connectedAt}},
	})

	text, isErr := callTool(t, session, ListClientsName, map[string]any{})
	require.False(t, isErr)

	var out listClientsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "tab-1", out.Clients[0].ClientID)
	assert.True(t, connectedAt.Equal(out.Clients[0].ConnectedAt))
}

func TestServer_SessionSummary(t *testing.T) {
	session := connect(t, Config{
		Invoker:  &fakeInvoker{},
		Clients:  fakeClients{},
		Sessions: fakeSummaries{"tab-1": "user: hello"},
	})

	text, isErr := callTool(t, session, SessionSummaryName, map[string]any{"client_id": "tab-1"})
	assert.False(t, isErr)
	assert.Equal(t, "user: hello", text)
}

func TestSplitClientID(t *testing.T) {
	id, rest, err := splitClientID(json.RawMessage(`{"client_id":" tab-1 ","path":"/x"}`))
	require.NoError(t, err)
	assert.Equal(t, "tab-1", id)
	assert.JSONEq(t, `{"path":"/x"}`, string(rest))

	_, _, err = splitClientID(nil)
	assert.Error(t, err)

	_, _, err = splitClientID(json.RawMessage(`{"client_id":42}`))
	assert.Error(t, err)

	_, _, err = splitClientID(json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, tools.ErrInvalidArguments)
}
