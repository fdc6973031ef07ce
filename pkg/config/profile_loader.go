package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentProfile is a named YAML configuration for one agent identity.
type AgentProfile struct {
	Name      string          `yaml:"name" json:"name"`
	DID       string          `yaml:"did" json:"did"`
	Runtime   RuntimeConfig   `yaml:"runtime" json:"runtime"`
	Rotation  RotationConfig  `yaml:"rotation" json:"rotation"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// RuntimeConfig pins or autodetects the runtime type.
type RuntimeConfig struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"` // empty means autodetect
}

// RotationConfig controls the advisory key-rotation check.
type RotationConfig struct {
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"` // 0 disables the check
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
	SampleRate   float64 `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
}

// LoadProfile loads profile_<name>.yaml from the profiles directory.
func LoadProfile(dir, name string) (*AgentProfile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("config: empty profile name")
	}

	path := filepath.Join(dir, fmt.Sprintf("profile_%s.yaml", name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %s: %w", name, err)
	}

	var profile AgentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %s: %w", name, err)
	}

	if profile.DID == "" {
		return nil, fmt.Errorf("config: profile %s missing did", name)
	}
	if profile.Telemetry.SampleRate < 0 || profile.Telemetry.SampleRate > 1 {
		return nil, fmt.Errorf("config: profile %s sample_rate %v out of range [0,1]",
			name, profile.Telemetry.SampleRate)
	}

	return &profile, nil
}
