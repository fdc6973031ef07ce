package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"noesis"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage")
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "hibernate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "wake")
	assert.Contains(t, stdout, "status")
}

func TestRun_WakeThenStatus(t *testing.T) {
	dir := t.TempDir()
	keystore := filepath.Join(dir, "keys", "attestation.key")
	sessions := filepath.Join(dir, "sessions.db")

	code, stdout, stderr := runCLI(t, "wake",
		"-did", "did:noesis:cli-agent",
		"-runtime", "edge",
		"-keystore", keystore,
		"-sessions", sessions,
		"-capabilities", "read,write,read",
	)
	require.Equal(t, 0, code, "wake failed: %s", stderr)
	assert.Contains(t, stdout, `"session_id"`)
	assert.Contains(t, stdout, `"did:noesis:cli-agent"`)
	assert.Contains(t, stdout, `"conscious": true`)
	// Duplicate capability collapses in the union.
	assert.Equal(t, 1, strings.Count(stdout, `"read"`))

	code, stdout, stderr = runCLI(t, "status",
		"-did", "did:noesis:cli-agent",
		"-sessions", sessions,
	)
	require.Equal(t, 0, code, "status failed: %s", stderr)
	assert.Contains(t, stdout, `"event": "wake"`)
}

func TestRun_WakeWithProfile(t *testing.T) {
	dir := t.TempDir()
	profile := `
name: local
did: did:noesis:profile-agent
runtime:
  type: edge
rotation:
  max_age_days: 7
telemetry:
  enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_local.yaml"), []byte(profile), 0644))

	code, stdout, stderr := runCLI(t, "wake",
		"-profile", "local",
		"-profiles-dir", dir,
		"-keystore", filepath.Join(dir, "keys.json"),
		"-sessions", filepath.Join(dir, "sessions.db"),
	)
	require.Equal(t, 0, code, "wake failed: %s", stderr)
	assert.Contains(t, stdout, `"did:noesis:profile-agent"`)
	assert.Contains(t, stdout, `"runtime_type": "edge"`)
}

func TestRun_WakeProfileFlagOverride(t *testing.T) {
	dir := t.TempDir()
	profile := "did: did:noesis:profile-agent\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_local.yaml"), []byte(profile), 0644))

	code, stdout, stderr := runCLI(t, "wake",
		"-profile", "local",
		"-profiles-dir", dir,
		"-did", "did:noesis:explicit-agent",
		"-keystore", filepath.Join(dir, "keys.json"),
		"-sessions", filepath.Join(dir, "sessions.db"),
	)
	require.Equal(t, 0, code, "wake failed: %s", stderr)
	assert.Contains(t, stdout, `"did:noesis:explicit-agent"`)
	assert.NotContains(t, stdout, "profile-agent")
}

func TestRun_WakeMissingProfile(t *testing.T) {
	code, _, stderr := runCLI(t, "wake",
		"-profile", "ghost",
		"-profiles-dir", t.TempDir(),
	)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "profile")
}

func TestRun_WakeWithTelemetry(t *testing.T) {
	dir := t.TempDir()

	// No collector is listening; exporters are lazy and shutdown is bounded,
	// so the wake cycle itself must still succeed.
	code, stdout, stderr := runCLI(t, "wake",
		"-did", "did:noesis:telemetry-agent",
		"-runtime", "edge",
		"-telemetry",
		"-keystore", filepath.Join(dir, "keys.json"),
		"-sessions", filepath.Join(dir, "sessions.db"),
	)
	require.Equal(t, 0, code, "wake failed: %s", stderr)
	assert.Contains(t, stdout, `"session_id"`)
}

func TestRun_StatusHistory(t *testing.T) {
	dir := t.TempDir()
	sessions := filepath.Join(dir, "sessions.db")

	for range 2 {
		code, _, stderr := runCLI(t, "wake",
			"-did", "did:noesis:cli-agent",
			"-runtime", "edge",
			"-keystore", filepath.Join(dir, "keys.json"),
			"-sessions", sessions,
		)
		require.Equal(t, 0, code, "wake failed: %s", stderr)
	}

	code, stdout, stderr := runCLI(t, "status",
		"-did", "did:noesis:cli-agent",
		"-sessions", sessions,
		"-history", "10",
	)
	require.Equal(t, 0, code, "status failed: %s", stderr)
	assert.Equal(t, 2, strings.Count(stdout, `"event": "wake"`))
}

func TestRun_StatusWithoutHistory(t *testing.T) {
	sessions := filepath.Join(t.TempDir(), "sessions.db")

	code, stdout, _ := runCLI(t, "status",
		"-did", "did:noesis:nobody",
		"-sessions", sessions,
	)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "no session history")
}

func TestSplitCapabilities(t *testing.T) {
	assert.Equal(t, []string{"read", "write"}, splitCapabilities(" read , write ,"))
	assert.Nil(t, splitCapabilities(""))
}
