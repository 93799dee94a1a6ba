// ABOUTME: Entry point for pagepilot-gateway, the browser agent bridge server
// ABOUTME: Runs the agent endpoint and keeps WebSocket channels to browser tabs

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/pagepilot/internal/config"
	"github.com/2389/pagepilot/internal/gateway"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
  ┌─┐┌─┐┌─┐┌─┐┌─┐┬┬  ┌─┐┌┬┐
  ├─┘├─┤│ ┬├┤ ├─┘││  │ │ │
  ┴  ┴ ┴└─┘└─┘┴  ┴┴─┘└─┘ ┴
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: pagepilot-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  health    Check gateway health")
		fmt.Println("  clients   List connected browser clients")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "clients":
		err = runClients(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if found {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    ")
		yellow.Println("defaults (no config file)")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s/%s\n", cfg.Agent.Provider, cfg.Agent.Model)
	green.Print("    ▶ ")
	fmt.Printf("Dispatch:  %s", cfg.Dispatch.Mode)
	if cfg.Dispatch.DiscardStale {
		gray.Print(" (discard stale)")
	}
	fmt.Println()
	if cfg.Audit.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Audit:     %s\n", cfg.Audit.Path)
	}
	if cfg.MCP.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("MCP:       %s\n", cfg.MCP.Path)
	}
	if cfg.Agent.Provider != config.ProviderEcho && cfg.Agent.APIKey == "" {
		yellow.Print("    ! ")
		fmt.Println("No API key configured; /agent requests will fail until one is set")
	}

	fmt.Println()

	logger.Info("starting pagepilot-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"provider", cfg.Agent.Provider,
		"model", cfg.Agent.Model,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// baseURL returns the URL CLI commands use to reach a running gateway.
// PAGEPILOT_URL overrides the configured listen address.
func baseURL() (string, error) {
	if u := os.Getenv("PAGEPILOT_URL"); u != "" {
		return strings.TrimSuffix(u, "/"), nil
	}
	cfg, _, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	host, port, err := net.SplitHostPort(cfg.Server.HTTPAddr)
	if err != nil {
		return "", fmt.Errorf("parsing server.http_addr: %w", err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func get(ctx context.Context, path string) (*http.Response, error) {
	base, err := baseURL()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func runHealth(ctx context.Context) error {
	resp, err := get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	fmt.Println("healthy")
	return nil
}

func runClients(ctx context.Context) error {
	resp, err := get(ctx, "/api/clients")
	if err != nil {
		return fmt.Errorf("clients check failed: %w", err)
	}
	defer resp.Body.Close()

	var clients gateway.ClientsResponse
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if clients.Count == 0 {
		fmt.Println("no clients connected")
		return nil
	}
	for _, c := range clients.Clients {
		fmt.Printf("%-36s  connected %s\n", c.ClientID, c.ConnectedAt.Local().Format(time.DateTime))
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("pagepilot-gateway configuration setup")
	fmt.Println("=====================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.Default()

	fmt.Println("\n--- Server Configuration ---")
	cfg.Server.HTTPAddr = prompt(reader, "HTTP address", cfg.Server.HTTPAddr)

	fmt.Println("\n--- Agent Configuration ---")
	cfg.Agent.Provider = prompt(reader, "Provider (openai, anthropic, echo)", cfg.Agent.Provider)
	cfg.Agent.Model = prompt(reader, "Model", cfg.Agent.Model)

	fmt.Println("\n--- Dispatch Configuration ---")
	cfg.Dispatch.Mode = prompt(reader, "Delivery mode (deferred, immediate)", cfg.Dispatch.Mode)
	if yes(prompt(reader, "Record dispatches to SQLite?", "no")) {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = prompt(reader, "Ledger path", cfg.Audit.Path)
	}

	check := *cfg
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := writeConfig(outputFile, data); err != nil {
		return err
	}

	fmt.Println()
	color.New(color.FgGreen).Printf("  ✓ Wrote %s\n", outputFile)
	fmt.Println()
	if env := apiKeyEnv(&check); env != "" {
		fmt.Printf("    export %s=...            # the agent reads its key from here\n", env)
	}
	fmt.Println("    pagepilot-gateway serve    # start the gateway")
	fmt.Println()
	return nil
}

// apiKeyEnv names the environment variable the provider's key is read from.
func apiKeyEnv(cfg *config.Config) string {
	switch {
	case cfg.Agent.Provider == config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case cfg.Agent.Provider == config.ProviderOpenAI && cfg.Agent.BaseURL == config.GeminiBaseURL:
		return "GOOGLE_API_KEY"
	case cfg.Agent.Provider == config.ProviderOpenAI:
		return "OPENAI_API_KEY"
	}
	return ""
}

func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func yes(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes"
}

// prompt asks a question and returns the answer or defaultVal.
func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
