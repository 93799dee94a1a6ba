// ABOUTME: Builds the agent model selected by the agent config section.
// ABOUTME: Missing credentials yield an UnavailableModel so the gateway still starts.

package gateway

import (
	"log/slog"

	"github.com/2389/pagepilot/internal/agent"
	anthropicmodel "github.com/2389/pagepilot/internal/agent/anthropic"
	openaimodel "github.com/2389/pagepilot/internal/agent/openai"
	"github.com/2389/pagepilot/internal/config"
)

// buildModel returns the model for cfg. Without an API key the returned
// model fails every request, mirroring an uninitialized agent.
func buildModel(cfg config.AgentConfig, logger *slog.Logger) agent.Model {
	switch cfg.Provider {
	case config.ProviderEcho:
		logger.Warn("using echo model, tool calls will never be produced")
		return agent.EchoModel{}

	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			logger.Warn("agent not initialized", "provider", cfg.Provider, "reason", "ANTHROPIC_API_KEY is not set")
			return agent.UnavailableModel{Provider: cfg.Provider, Reason: "ANTHROPIC_API_KEY is not set"}
		}
		return anthropicmodel.New(anthropicmodel.Options{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		})

	default:
		if cfg.APIKey == "" {
			reason := "OPENAI_API_KEY is not set"
			if cfg.BaseURL == config.GeminiBaseURL {
				reason = "GOOGLE_API_KEY is not set"
			}
			logger.Warn("agent not initialized", "provider", cfg.Provider, "reason", reason)
			return agent.UnavailableModel{Provider: cfg.Provider, Reason: reason}
		}
		return openaimodel.New(openaimodel.Options{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		})
	}
}
