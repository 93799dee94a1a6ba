// ABOUTME: MCP Streamable HTTP server exposing browser tools to external agents.
// ABOUTME: Each call carries a client_id and is delivered immediately through the dispatcher.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389/pagepilot/internal/channel"
	"github.com/2389/pagepilot/internal/store"
	"github.com/2389/pagepilot/internal/tools"
)

// Names of the helper tools registered next to the browser vocabulary.
const (
	ListClientsName       = "list_clients"
	SessionSummaryName    = "get_session_summary"
	clientIDArgument      = "client_id"
	implementationName    = "pagepilot-gateway"
	implementationVersion = "1.0.0"
)

// Invoker delivers one browser action to a client outside any agent run.
type Invoker interface {
	Invoke(ctx context.Context, clientID string, action tools.Action) (store.Outcome, error)
}

// ClientLister reports the attached clients.
type ClientLister interface {
	List() []channel.ClientInfo
}

// SummaryReader renders a client's recent conversation.
type SummaryReader interface {
	Summary(clientID string) string
}

// Config holds the collaborators of the MCP server.
type Config struct {
	Invoker  Invoker
	Clients  ClientLister
	Sessions SummaryReader // optional
	Logger   *slog.Logger
	Version  string
}

// Server wraps an MCP server registered with the browser tools.
type Server struct {
	server   *mcp.Server
	invoker  Invoker
	clients  ClientLister
	sessions SummaryReader
	logger   *slog.Logger
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if cfg.Clients == nil {
		return nil, errors.New("client lister is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = implementationVersion
	}

	s := &Server{
		server:   mcp.NewServer(&mcp.Implementation{Name: implementationName, Version: version}, nil),
		invoker:  cfg.Invoker,
		clients:  cfg.Clients,
		sessions: cfg.Sessions,
		logger:   logger.With("component", "mcp"),
	}

	for _, def := range tools.Definitions() {
		schema, err := withClientID(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("building schema for %s: %w", def.Name, err)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description + " Delivered immediately to the page identified by client_id.",
			InputSchema: schema,
		}, s.browserTool(def.Name))
	}

	s.server.AddTool(&mcp.Tool{
		Name:        ListClientsName,
		Description: "List the browser clients currently connected to the gateway.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.listClients)

	if s.sessions != nil {
		s.server.AddTool(&mcp.Tool{
			Name:        SessionSummaryName,
			Description: "Summarize the recent conversation held for a browser client.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"client_id":{"type":"string","description":"Client identity of the browser page"}},"required":["client_id"]}`),
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
		}, s.sessionSummary)
	}

	return s, nil
}

// Handler returns the Streamable HTTP handler to mount on the gateway mux.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
}

func (s *Server) browserTool(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID, args, err := splitClientID(req.Params.Arguments)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		action, err := tools.Parse(name, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		outcome, err := s.invoker.Invoke(ctx, clientID, action)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		s.logger.Info("mcp tool call",
			"tool", name,
			"client_id", clientID,
			"outcome", outcome,
		)

		switch outcome {
		case store.OutcomeDelivered:
			return textResult(action.Ack()), nil
		case store.OutcomeDropped:
			return errorResult(fmt.Sprintf("client %s is not connected", clientID)), nil
		default:
			return errorResult(fmt.Sprintf("delivery to client %s failed", clientID)), nil
		}
	}
}

type listClientsOutput struct {
	Clients []channel.ClientInfo `json:"clients"`
	Count   int                  `json:"count"`
}

func (s *Server) listClients(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clients := s.clients.List()
	data, err := json.MarshalIndent(listClientsOutput{Clients: clients, Count: len(clients)}, "", "  ")
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return textResult(string(data)), nil
}

func (s *Server) sessionSummary(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, _, err := splitClientID(req.Params.Arguments)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(s.sessions.Summary(clientID)), nil
}

// splitClientID removes client_id from the raw arguments and returns it
// together with the remaining arguments.
func splitClientID(raw json.RawMessage) (string, json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, errors.New("client_id is required")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, fmt.Errorf("%w: %w", tools.ErrInvalidArguments, err)
	}

	var clientID string
	if v, ok := fields[clientIDArgument]; ok {
		if err := json.Unmarshal(v, &clientID); err != nil {
			return "", nil, errors.New("client_id must be a string")
		}
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", nil, errors.New("client_id is required")
	}

	delete(fields, clientIDArgument)
	rest, err := json.Marshal(fields)
	if err != nil {
		return "", nil, fmt.Errorf("encoding arguments: %w", err)
	}
	return clientID, rest, nil
}

// withClientID adds the required client_id property to a tool schema.
func withClientID(params map[string]any) (json.RawMessage, error) {
	props, _ := params["properties"].(map[string]any)
	merged := make(map[string]any, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged[clientIDArgument] = map[string]any{
		"type":        "string",
		"description": "Client identity of the browser page to act on",
	}

	required := []string{clientIDArgument}
	if existing, ok := params["required"].([]string); ok {
		required = append(required, existing...)
	}

	return json.Marshal(map[string]any{
		"type":       "object",
		"properties": merged,
		"required":   required,
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
