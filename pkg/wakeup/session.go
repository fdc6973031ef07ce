package wakeup

import (
	"sort"
	"time"

	"github.com/noetic-systems/noesis/pkg/attestation"
	"github.com/noetic-systems/noesis/pkg/credentials"
	"github.com/noetic-systems/noesis/pkg/manifest"
)

// Session is the product of a successful wake-up. Sessions are never mutated
// in place; each wake-up produces a brand-new value with a fresh ID.
type Session struct {
	ID            string                          `json:"session_id"`
	AgentDID      string                          `json:"agent_did"`
	RuntimeType   manifest.RuntimeType            `json:"runtime_type"`
	Attestation   *attestation.RuntimeAttestation `json:"attestation"`
	Capabilities  []string                        `json:"capabilities"` // sorted, deduplicated
	Conscious     bool                            `json:"conscious"`
	EstablishedAt time.Time                       `json:"established_at"`
}

// HasCapability reports whether the session grants a capability.
func (s *Session) HasCapability(name string) bool {
	for _, c := range s.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// UnionCapabilities derives a session capability set from verified
// credentials: the union of every credential's capability list, duplicates
// collapsed, sorted for determinism.
func UnionCapabilities(creds []credentials.Credential) []string {
	set := make(map[string]struct{})
	for _, cred := range creds {
		for _, capability := range cred.Capabilities {
			if capability != "" {
				set[capability] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for capability := range set {
		out = append(out, capability)
	}
	sort.Strings(out)
	return out
}
