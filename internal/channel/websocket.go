// ABOUTME: WebSocket-backed Channel for one browser tab.
// ABOUTME: Serializes writes and answers ping probes on the read loop.

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// DefaultWriteTimeout bounds a single outbound write.
const DefaultWriteTimeout = 10 * time.Second

// inboundMessage is the only shape the gateway reads from clients today.
type inboundMessage struct {
	Type string `json:"type"`
}

// WebSocketChannel implements Channel over a coder/websocket connection.
type WebSocketChannel struct {
	ClientID string

	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	logger       *slog.Logger
}

// NewWebSocketChannel wraps an accepted connection for clientID.
func NewWebSocketChannel(clientID string, conn *websocket.Conn, logger *slog.Logger) *WebSocketChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketChannel{
		ClientID:     clientID,
		conn:         conn,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger.With("client_id", clientID),
	}
}

// Send writes msg as a single text frame.
func (c *WebSocketChannel) Send(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, msg)
}

// sendJSON writes v as JSON under the same write lock as Send.
func (c *WebSocketChannel) sendJSON(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}

// Close closes the socket with a going-away status.
func (c *WebSocketChannel) Close(reason string) error {
	return c.conn.Close(websocket.StatusGoingAway, reason)
}

// Serve runs the read loop until the client disconnects or ctx is done.
// A normal close by the client returns nil.
func (c *WebSocketChannel) Serve(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if isNormalClose(err) {
				return nil
			}
			return err
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("ignoring non-JSON frame", "bytes", len(data))
			continue
		}

		switch msg.Type {
		case "ping":
			if err := c.sendJSON(ctx, inboundMessage{Type: "pong"}); err != nil {
				return err
			}
		default:
			c.logger.Debug("ignoring inbound message", "type", msg.Type)
		}
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
