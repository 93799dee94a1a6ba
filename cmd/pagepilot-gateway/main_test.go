// ABOUTME: Tests for pagepilot-gateway CLI helpers.
// ABOUTME: Covers prompts, the API key hint, base URL resolution, and config writing.

package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pagepilot/internal/config"
)

func TestPrompt(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("custom\n\n"))
	assert.Equal(t, "custom", prompt(reader, "Model", "gemini-2.0-flash"))
	assert.Equal(t, "gemini-2.0-flash", prompt(reader, "Model", "gemini-2.0-flash"))
	assert.Equal(t, "fallback", prompt(reader, "Model", "fallback"), "EOF returns the default")
}

func TestYes(t *testing.T) {
	assert.True(t, yes("y"))
	assert.True(t, yes(" YES "))
	assert.False(t, yes("no"))
	assert.False(t, yes(""))
}

func TestAPIKeyEnv(t *testing.T) {
	cfg := config.Default()
	cfg.ApplyDefaults()
	assert.Equal(t, "GOOGLE_API_KEY", apiKeyEnv(cfg))

	cfg.Agent.BaseURL = ""
	assert.Equal(t, "OPENAI_API_KEY", apiKeyEnv(cfg))

	cfg.Agent.Provider = config.ProviderAnthropic
	assert.Equal(t, "ANTHROPIC_API_KEY", apiKeyEnv(cfg))

	cfg.Agent.Provider = config.ProviderEcho
	assert.Empty(t, apiKeyEnv(cfg))
}

func TestBaseURL_EnvOverride(t *testing.T) {
	t.Setenv("PAGEPILOT_URL", "http://gateway.internal:9000/")
	u, err := baseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.internal:9000", u)
}

func TestBaseURL_FromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_addr: \"0.0.0.0:8123\"\n"), 0600))
	t.Setenv("PAGEPILOT_URL", "")
	t.Setenv("PAGEPILOT_CONFIG", path)

	u, err := baseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8123", u)
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	data, err := config.Marshal(config.Default())
	require.NoError(t, err)

	require.NoError(t, writeConfig(path, data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.HTTPAddr, cfg.Server.HTTPAddr)
}
