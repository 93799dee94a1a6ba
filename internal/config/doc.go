// Package config handles configuration loading for pagepilot-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Keys missing from the file keep their defaults, so an empty
// file is a valid configuration. Running without any file uses Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PAGEPILOT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pagepilot/gateway.yaml
//  3. ~/.config/pagepilot/gateway.yaml
//
// A path ending in .toml is parsed as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	agent:
//	  api_key: "${GOOGLE_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// When agent.api_key is empty it is taken from the provider's variable:
// GOOGLE_API_KEY for gemini models, OPENAI_API_KEY for other openai models,
// ANTHROPIC_API_KEY for anthropic.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  timeout: "1h"
//	  sweep_interval: "1h"
//	agent:
//	  timeout: "120s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	  allowed_origins: ["http://localhost:5173", "http://127.0.0.1:5173"]
//
// Conversation memory:
//
//	sessions:
//	  max_turns: 20
//	  summary_turns: 6
//	  summary_chars: 200
//
// Agent:
//
//	agent:
//	  provider: "openai"          # openai, anthropic, or echo
//	  model: "gemini-2.0-flash"
//	  base_url: ""                # defaults to Gemini's endpoint for gemini models
//	  temperature: 0.1
//	  max_steps: 10
//
// Delivery:
//
//	dispatch:
//	  mode: "deferred"            # or immediate
//	  discard_stale: true
//
// Dispatch ledger, MCP endpoint, logging:
//
//	audit:
//	  enabled: false
//	  path: "~/.local/share/pagepilot/dispatches.db"
//	mcp:
//	  enabled: true
//	  path: "/mcp"
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # or json
package config
