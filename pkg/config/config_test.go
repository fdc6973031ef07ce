package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noetic-systems/noesis/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENT_DID", "")
	t.Setenv("RUNTIME_TYPE", "")
	t.Setenv("KEYSTORE_PATH", "")
	t.Setenv("SESSION_LOG_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTLP_ENDPOINT", "")
	t.Setenv("TELEMETRY", "")

	cfg := config.Load()

	assert.Empty(t, cfg.AgentDID)
	assert.Empty(t, cfg.RuntimeType) // empty means autodetect
	assert.Equal(t, "data/keys/attestation.key", cfg.KeystorePath)
	assert.Equal(t, "data/sessions.db", cfg.SessionLogPath)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.False(t, cfg.Telemetry)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGENT_DID", "did:noesis:agent-1")
	t.Setenv("RUNTIME_TYPE", "edge")
	t.Setenv("KEYSTORE_PATH", "/var/lib/noesis/keys.json")
	t.Setenv("SESSION_LOG_PATH", "/var/lib/noesis/sessions.db")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TELEMETRY", "true")

	cfg := config.Load()

	assert.Equal(t, "did:noesis:agent-1", cfg.AgentDID)
	assert.Equal(t, "edge", cfg.RuntimeType)
	assert.Equal(t, "/var/lib/noesis/keys.json", cfg.KeystorePath)
	assert.Equal(t, "/var/lib/noesis/sessions.db", cfg.SessionLogPath)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.True(t, cfg.Telemetry)
}
