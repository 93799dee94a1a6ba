// ABOUTME: Minimal fake browser page for E2E testing: connects over WebSocket and prints tool invocations.
// ABOUTME: Usage: fake-browser [-url ws://localhost:8000] [-id tab-1] [-ping 20s]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fatih/color"
)

// invocation mirrors the outbound message the gateway sends to a page.
type invocation struct {
	Type      string          `json:"type,omitempty"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Timestamp string          `json:"timestamp"`
}

func main() {
	url := flag.String("url", "ws://localhost:8000", "Gateway base URL")
	clientID := flag.String("id", "e2e-fake-browser", "Client ID to register as")
	ping := flag.Duration("ping", 20*time.Second, "Ping interval (0 disables)")
	flag.Parse()

	if err := run(*url, *clientID, *ping); err != nil {
		log.Fatal(err)
	}
}

func run(baseURL, clientID string, ping time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	endpoint := strings.TrimSuffix(baseURL, "/") + "/ws/" + clientID
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.CloseNow()

	fmt.Fprintf(os.Stderr, "connected as %s (%s)\n", clientID, endpoint)

	if ping > 0 {
		go pingLoop(ctx, conn, ping)
	}

	for {
		var msg invocation
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "bye")
				return nil // graceful shutdown
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				fmt.Fprintf(os.Stderr, "gateway closed the connection (%d)\n", status)
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		if msg.Type == "pong" {
			log.Printf("%s", color.HiBlackString("pong"))
			continue
		}
		log.Printf("%s %s", color.CyanString(msg.Tool), string(msg.Args))
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, map[string]string{"type": "ping"}); err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}
}
