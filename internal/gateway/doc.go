// Package gateway serves the browser bridge over HTTP and WebSocket.
//
// # Overview
//
// The gateway owns every stateful component: the channel registry of
// connected browser tabs, the invocation queue, the session store, and the
// dispatch ledger. It wires them into a dispatch.Coordinator around the
// configured agent model and exposes the result over HTTP.
//
// # Gateway Struct
//
//	type Gateway struct {
//	    config      *config.Config
//	    channels    *channel.Registry
//	    queue       *queue.Queue
//	    sessions    *session.Store
//	    ledger      store.DispatchLog
//	    coordinator *dispatch.Coordinator
//	    mcpServer   *mcp.Server
//	    httpServer  *http.Server
//	}
//
// # HTTP API
//
//   - POST /agent - Run the agent for {"query", "client_id"}; returns {"content", "request_id"}
//   - GET /ws/{client_id} - WebSocket for a browser tab; answers {"type":"ping"} with pong
//   - GET / and GET /health - Liveness
//   - GET /health/ready - 503 while the agent model is not initialized
//   - GET /api/clients - Connected clients
//   - GET /api/clients/{client_id}/dispatches - Recent ledger entries (?limit, ?outcome)
//   - GET /api/queue - Invocations waiting for delivery
//   - GET /api/sessions - Stored sessions
//   - GET /api/sessions/{client_id}/history - Turn snapshot
//   - GET /api/sessions/{client_id}/summary - Rendered summary
//   - DELETE /api/sessions/{client_id} - Clear and rotate a session
//   - POST /api/sessions/sweep - Remove expired sessions now
//   - /mcp - MCP Streamable HTTP endpoint (when mcp.enabled)
//
// Errors are returned as {"error": "..."}.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run starts the session sweeper and the HTTP server. On shutdown the
// sweeper stops, every browser socket is closed with a going-away status,
// the HTTP server drains, and the ledger is closed.
package gateway
