package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5, cfg.Queue.RunningCapacity)
	assert.Equal(t, 10, cfg.Queue.QueuedCapacity)
	assert.Equal(t, 51200, cfg.Validator.MaxScriptLength)
	assert.Equal(t, 1000, cfg.Validator.MaxStatements)
	assert.Equal(t, 1000, cfg.Validator.MaxStringLiteral)
	assert.Empty(t, cfg.Validator.RulesFile)
	assert.Equal(t, 30, cfg.Sandbox.TimeoutSeconds)
	assert.True(t, cfg.Sandbox.EnableConsole)
	assert.Empty(t, cfg.Notify.WebhookURL)
	assert.Equal(t, 3, cfg.Notify.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RUNNING_CAPACITY", "2")
	t.Setenv("QUEUED_CAPACITY", "4")
	t.Setenv("MAX_SCRIPT_LENGTH", "1024")
	t.Setenv("SANDBOX_TIMEOUT_SECONDS", "5")
	t.Setenv("OUTCOME_WEBHOOK_URL", "http://localhost:9999/events")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Queue.RunningCapacity)
	assert.Equal(t, 4, cfg.Queue.QueuedCapacity)
	assert.Equal(t, 1024, cfg.Validator.MaxScriptLength)
	assert.Equal(t, 5, cfg.Sandbox.TimeoutSeconds)
	assert.Equal(t, "http://localhost:9999/events", cfg.Notify.WebhookURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("RUNNING_CAPACITY", "lots")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("RUNNING_CAPACITY", "lots")

	cfg := LoadOrDefault()
	assert.Equal(t, 5, cfg.Queue.RunningCapacity)
}
