// ABOUTME: WebSocket endpoint that attaches a browser tab to the channel registry.
// ABOUTME: One read loop per connection; a replaced connection never detaches its successor.

package gateway

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/2389/pagepilot/internal/channel"
)

// handleWebSocket handles GET /ws/{client_id}.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.PathValue("client_id"))
	if clientID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	patterns, allowAll := originPatterns(g.config.Server.AllowedOrigins)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: allowAll,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		g.logger.Warn("websocket handshake failed", "client_id", clientID, "error", err)
		return
	}

	ch := channel.NewWebSocketChannel(clientID, conn, g.logger)
	if previous := g.channels.Attach(clientID, ch); previous != nil {
		// Close waits for the peer's close frame; don't hold up the new socket.
		go func() {
			if err := previous.Close("replaced by a new connection"); err != nil {
				g.logger.Debug("closing replaced channel", "client_id", clientID, "error", err)
			}
		}()
	}

	err = ch.Serve(r.Context())
	g.channels.DetachIf(clientID, ch)
	if err != nil {
		g.logger.Warn("websocket closed with error", "client_id", clientID, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "read failed")
		return
	}
	_ = conn.CloseNow()
}
