// Package config provides runtime configuration for the agent process.
package config

import "os"

// Config holds agent runtime configuration.
type Config struct {
	AgentDID       string
	RuntimeType    string // empty means autodetect
	KeystorePath   string
	SessionLogPath string
	LogLevel       string
	OTLPEndpoint   string
	Telemetry      bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	keystorePath := os.Getenv("KEYSTORE_PATH")
	if keystorePath == "" {
		keystorePath = "data/keys/attestation.key"
	}

	sessionLogPath := os.Getenv("SESSION_LOG_PATH")
	if sessionLogPath == "" {
		sessionLogPath = "data/sessions.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	otlpEndpoint := os.Getenv("OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	return &Config{
		AgentDID:       os.Getenv("AGENT_DID"),
		RuntimeType:    os.Getenv("RUNTIME_TYPE"),
		KeystorePath:   keystorePath,
		SessionLogPath: sessionLogPath,
		LogLevel:       logLevel,
		OTLPEndpoint:   otlpEndpoint,
		Telemetry:      os.Getenv("TELEMETRY") == "true",
	}
}
