// ABOUTME: Gateway orchestrator that owns the channel registry, queue, sessions, and ledger
// ABOUTME: Manages the HTTP server, session sweeper, and shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/pagepilot/internal/agent"
	"github.com/2389/pagepilot/internal/channel"
	"github.com/2389/pagepilot/internal/config"
	"github.com/2389/pagepilot/internal/dispatch"
	"github.com/2389/pagepilot/internal/mcp"
	"github.com/2389/pagepilot/internal/queue"
	"github.com/2389/pagepilot/internal/session"
	"github.com/2389/pagepilot/internal/store"
)

// Gateway wires the browser bridge together and serves it over HTTP.
type Gateway struct {
	config      *config.Config
	channels    *channel.Registry
	queue       *queue.Queue
	sessions    *session.Store
	ledger      store.DispatchLog
	model       agent.Model
	coordinator *dispatch.Coordinator
	mcpServer   *mcp.Server
	httpServer  *http.Server
	logger      *slog.Logger

	// stopSweeper cancels the session sweeper started by Run
	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// initLedger opens the SQLite dispatch ledger when audit is enabled and an
// in-memory ledger otherwise.
func initLedger(cfg *config.Config) (store.DispatchLog, error) {
	if !cfg.Audit.Enabled {
		return store.NewMemoryStore(store.DefaultMemoryCapacity), nil
	}
	s, err := store.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing dispatch ledger: %w", err)
	}
	return s, nil
}

// New creates a Gateway with the model selected by cfg.Agent.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return newGateway(cfg, buildModel(cfg.Agent, logger), logger)
}

func newGateway(cfg *config.Config, model agent.Model, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ledger, err := initLedger(cfg)
	if err != nil {
		return nil, err
	}

	channels := channel.NewRegistry(logger)
	q := queue.New(logger)
	sessions := session.NewStore(session.Options{
		MaxTurns:     cfg.Sessions.MaxTurns,
		Timeout:      cfg.Sessions.Timeout,
		SummaryTurns: cfg.Sessions.SummaryTurns,
		SummaryChars: cfg.Sessions.SummaryChars,
	}, logger)

	loop := agent.NewLoop(model, agent.Options{
		MaxSteps:     cfg.Agent.MaxSteps,
		SystemPrompt: cfg.Agent.SystemPrompt,
	}, logger)

	coordinator := dispatch.NewCoordinator(dispatch.Deps{
		Sessions: sessions,
		Queue:    q,
		Channels: channels,
		Runner:   loop,
		Ledger:   ledger,
	}, dispatch.Options{
		Mode:         dispatch.Mode(cfg.Dispatch.Mode),
		DiscardStale: cfg.Dispatch.DiscardStale,
		Timeout:      cfg.Agent.Timeout,
	}, logger)

	gw := &Gateway{
		config:      cfg,
		channels:    channels,
		queue:       q,
		sessions:    sessions,
		ledger:      ledger,
		model:       model,
		coordinator: coordinator,
		logger:      logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	gw.registerRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Invoker:  coordinator,
			Clients:  channels,
			Sessions: sessions,
			Logger:   logger,
		})
		if err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		gw.mcpServer = mcpServer
		mux.Handle(cfg.MCP.Path, mcpServer.Handler())
		gw.logger.Info("MCP endpoint enabled", "path", cfg.MCP.Path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           corsMiddleware(cfg.Server.AllowedOrigins)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway configured",
		"model", model.Name(),
		"dispatch_mode", cfg.Dispatch.Mode,
		"discard_stale", cfg.Dispatch.DiscardStale,
		"audit", cfg.Audit.Enabled,
	)
	return gw, nil
}

// Handler returns the HTTP handler with CORS applied.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Coordinator returns the dispatch coordinator.
func (g *Gateway) Coordinator() *dispatch.Coordinator {
	return g.coordinator
}

// Channels returns the channel registry.
func (g *Gateway) Channels() *channel.Registry {
	return g.channels
}

// Sessions returns the session store.
func (g *Gateway) Sessions() *session.Store {
	return g.sessions
}

// startSweeper runs the session sweeper until Shutdown.
func (g *Gateway) startSweeper() {
	ctx, cancel := context.WithCancel(context.Background())
	g.stopSweeper = cancel
	g.sweeperDone = make(chan struct{})
	go func() {
		defer close(g.sweeperDone)
		g.sessions.Run(ctx, g.config.Sessions.SweepInterval)
	}()
	g.logger.Info("session sweeper started", "interval", g.config.Sessions.SweepInterval)
}

func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run listens on server.http_addr and serves until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.startSweeper()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the sweeper, closes every browser channel, stops the HTTP
// server, and closes the ledger.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	if g.stopSweeper != nil {
		g.stopSweeper()
		<-g.sweeperDone
	}

	// WebSocket connections are hijacked, so http.Server.Shutdown does not
	// wait for them. Close them first.
	g.channels.CloseAll(ctx, "server shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "ledger close", g.ledger.Close())

	if pending := g.queue.Len(); pending > 0 {
		g.logger.Warn("discarding undelivered invocations", "count", pending)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
