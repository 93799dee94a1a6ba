// ABOUTME: Configuration loading and parsing for pagepilot-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pagepilot-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Sessions SessionsConfig `yaml:"sessions" toml:"sessions"`
	Agent    AgentConfig    `yaml:"agent" toml:"agent"`
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`
	Audit    AuditConfig    `yaml:"audit" toml:"audit"`
	MCP      MCPConfig      `yaml:"mcp" toml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener and CORS settings
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// SessionsConfig holds conversation memory limits and expiry timing
type SessionsConfig struct {
	MaxTurns     int `yaml:"max_turns" toml:"max_turns"`
	SummaryTurns int `yaml:"summary_turns" toml:"summary_turns"`
	SummaryChars int `yaml:"summary_chars" toml:"summary_chars"`

	Timeout       time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw       string `yaml:"timeout" toml:"timeout"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// AgentConfig selects the model provider and bounds each run
type AgentConfig struct {
	Provider     string  `yaml:"provider" toml:"provider"`
	Model        string  `yaml:"model" toml:"model"`
	APIKey       string  `yaml:"api_key" toml:"api_key"`
	BaseURL      string  `yaml:"base_url" toml:"base_url"`
	Temperature  float64 `yaml:"temperature" toml:"temperature"`
	MaxSteps     int     `yaml:"max_steps" toml:"max_steps"`
	SystemPrompt string  `yaml:"system_prompt,omitempty" toml:"system_prompt"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// DispatchConfig controls when queued invocations reach the browser
type DispatchConfig struct {
	Mode         string `yaml:"mode" toml:"mode"`
	DiscardStale bool   `yaml:"discard_stale" toml:"discard_stale"`
}

// AuditConfig enables the SQLite dispatch ledger
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// MCPConfig holds the MCP endpoint configuration
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Provider names accepted in agent.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// GeminiBaseURL is Google's OpenAI-compatible endpoint, used for gemini
// models when agent.base_url is unset.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       "0.0.0.0:8000",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Sessions: SessionsConfig{
			MaxTurns:         20,
			SummaryTurns:     6,
			SummaryChars:     200,
			Timeout:          time.Hour,
			SweepInterval:    time.Hour,
			TimeoutRaw:       "1h",
			SweepIntervalRaw: "1h",
		},
		Agent: AgentConfig{
			Provider:    ProviderOpenAI,
			Model:       "gemini-2.0-flash",
			Temperature: 0.1,
			MaxSteps:    10,
			Timeout:     120 * time.Second,
			TimeoutRaw:  "120s",
		},
		Dispatch: DispatchConfig{
			Mode:         "deferred",
			DiscardStale: true,
		},
		Audit: AuditConfig{
			Path: defaultAuditPath(),
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultAuditPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "pagepilot", "dispatches.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "pagepilot", "dispatches.db")
	}
	return "dispatches.db"
}

// DefaultPath returns the config location: PAGEPILOT_CONFIG, then
// $XDG_CONFIG_HOME/pagepilot/gateway.yaml, then ~/.config/pagepilot/gateway.yaml.
func DefaultPath() string {
	if p := os.Getenv("PAGEPILOT_CONFIG"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pagepilot", "gateway.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(home, ".config", "pagepilot", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys missing from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default
// otherwise. The second return reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.ApplyDefaults()
		return cfg, false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills values derived from other settings: the Gemini base
// URL for gemini models and the provider's API key environment variable.
func (c *Config) ApplyDefaults() {
	a := &c.Agent
	a.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	isGemini := strings.HasPrefix(strings.ToLower(a.Model), "gemini")

	if a.Provider == ProviderOpenAI && a.BaseURL == "" && isGemini {
		a.BaseURL = GeminiBaseURL
	}

	if a.APIKey == "" {
		switch {
		case a.Provider == ProviderAnthropic:
			a.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case a.Provider == ProviderOpenAI && isGemini:
			a.APIKey = os.Getenv("GOOGLE_API_KEY")
		case a.Provider == ProviderOpenAI:
			a.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	c.Dispatch.Mode = strings.ToLower(strings.TrimSpace(c.Dispatch.Mode))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Sessions.MaxTurns <= 0 {
		return fmt.Errorf("sessions.max_turns must be positive, got %d", c.Sessions.MaxTurns)
	}
	if c.Sessions.SummaryTurns <= 0 {
		return fmt.Errorf("sessions.summary_turns must be positive, got %d", c.Sessions.SummaryTurns)
	}
	if c.Sessions.SummaryChars <= 0 {
		return fmt.Errorf("sessions.summary_chars must be positive, got %d", c.Sessions.SummaryChars)
	}
	if c.Sessions.Timeout <= 0 {
		return fmt.Errorf("sessions.timeout must be positive")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}

	switch c.Agent.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderEcho:
	default:
		return fmt.Errorf("agent.provider must be one of openai, anthropic, echo; got %q", c.Agent.Provider)
	}
	if c.Agent.Provider != ProviderEcho && c.Agent.Model == "" {
		return fmt.Errorf("agent.model is required")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("agent.temperature must be between 0 and 2, got %v", c.Agent.Temperature)
	}

	switch c.Dispatch.Mode {
	case "deferred", "immediate":
	default:
		return fmt.Errorf("dispatch.mode must be deferred or immediate, got %q", c.Dispatch.Mode)
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with /, got %q", c.MCP.Path)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.TimeoutRaw != "" {
		cfg.Sessions.Timeout, err = time.ParseDuration(cfg.Sessions.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.timeout %q: %w", cfg.Sessions.TimeoutRaw, err)
		}
	}

	if cfg.Sessions.SweepIntervalRaw != "" {
		cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
		}
	}

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	return nil
}

// Marshal renders cfg as YAML. The API key is blanked.
func Marshal(cfg *Config) ([]byte, error) {
	cp := *cfg
	cp.Agent.APIKey = ""
	data, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
