// Package attestation produces signed runtime attestations: statements
// binding an agent's identity to a snapshot of its execution environment at
// wake-up time.
package attestation

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/noetic-systems/noesis/pkg/kms"
	"github.com/noetic-systems/noesis/pkg/manifest"
)

// RuntimeAttestation is a signed environment snapshot. It is owned by the
// session it is embedded in and is never reused across sessions.
type RuntimeAttestation struct {
	ID          string               `json:"attestation_id"`
	AgentDID    string               `json:"agent_did"`
	RuntimeType manifest.RuntimeType `json:"runtime_type"`
	Manifest    map[string]string    `json:"manifest"`
	State       map[string]any       `json:"state"`
	IssuedAt    time.Time            `json:"issued_at"`
	Algorithm   string               `json:"algorithm"`
	KeyVersion  int                  `json:"key_version,omitempty"`
	Signature   string               `json:"signature"`
}

// Signer produces signed attestations. Signing internals (key material,
// scheme) stay behind this interface.
type Signer interface {
	Sign(ctx context.Context, agentDID string, rt manifest.RuntimeType, facts map[string]string, state map[string]any) (*RuntimeAttestation, error)
}

// Ed25519Signer signs the RFC 8785 canonical form of the attestation payload
// with the active key of a signing keystore.
type Ed25519Signer struct {
	keys  *kms.SigningKeystore
	clock func() time.Time
}

func NewEd25519Signer(keys *kms.SigningKeystore) (*Ed25519Signer, error) {
	if keys == nil {
		return nil, errors.New("attestation: nil keystore")
	}
	return &Ed25519Signer{keys: keys, clock: time.Now}, nil
}

// NewEphemeralSigner creates a signer with a process-lifetime key in a
// throwaway keystore under dir. Suitable for tests and local runs.
func NewEphemeralSigner(dir string) (*Ed25519Signer, error) {
	keys, err := kms.NewSigningKeystore(dir + "/attestation.key")
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(keys)
}

// WithClock overrides the clock for testing.
func (s *Ed25519Signer) WithClock(clock func() time.Time) *Ed25519Signer {
	s.clock = clock
	return s
}

// Sign implements Signer.
func (s *Ed25519Signer) Sign(ctx context.Context, agentDID string, rt manifest.RuntimeType, facts map[string]string, state map[string]any) (*RuntimeAttestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("attestation: sign: %w", err)
	}

	att := &RuntimeAttestation{
		ID:          uuid.New().String(),
		AgentDID:    agentDID,
		RuntimeType: rt,
		Manifest:    facts,
		State:       state,
		IssuedAt:    s.clock().UTC(),
		Algorithm:   "ed25519",
	}

	payload, err := payloadBytes(att)
	if err != nil {
		return nil, err
	}

	priv, version := s.keys.ActiveKey()
	att.KeyVersion = version
	att.Signature = hex.EncodeToString(ed25519.Sign(priv, payload))
	return att, nil
}

// Verify checks an attestation's signature against a public key.
func Verify(att *RuntimeAttestation, pub ed25519.PublicKey) (bool, error) {
	if att == nil {
		return false, errors.New("attestation: nil attestation")
	}

	payload, err := payloadBytes(att)
	if err != nil {
		return false, err
	}

	sig, err := hex.DecodeString(att.Signature)
	if err != nil {
		return false, fmt.Errorf("attestation: decode signature: %w", err)
	}

	return ed25519.Verify(pub, payload, sig), nil
}

// payloadBytes returns the canonical signing payload: every field except the
// signature, serialized per RFC 8785 so signer and verifier agree bytewise.
func payloadBytes(att *RuntimeAttestation) ([]byte, error) {
	hashable := struct {
		ID          string               `json:"attestation_id"`
		AgentDID    string               `json:"agent_did"`
		RuntimeType manifest.RuntimeType `json:"runtime_type"`
		Manifest    map[string]string    `json:"manifest"`
		State       map[string]any       `json:"state"`
		IssuedAt    time.Time            `json:"issued_at"`
		Algorithm   string               `json:"algorithm"`
	}{
		ID:          att.ID,
		AgentDID:    att.AgentDID,
		RuntimeType: att.RuntimeType,
		Manifest:    att.Manifest,
		State:       att.State,
		IssuedAt:    att.IssuedAt,
		Algorithm:   att.Algorithm,
	}

	data, err := json.Marshal(hashable)
	if err != nil {
		return nil, fmt.Errorf("attestation: marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("attestation: canonicalize payload: %w", err)
	}
	return canonical, nil
}
