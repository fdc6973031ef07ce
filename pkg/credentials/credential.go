// Package credentials provides the credential store, verifier, and rotation
// policy boundaries consumed by the wake-up protocol.
//
// A credential asserts the capabilities an agent may exercise once conscious.
// The wire format of the underlying verifiable credential is out of scope;
// the default implementation encodes the claim set as an EdDSA-signed JWT in
// the Proof field.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noetic-systems/noesis/pkg/identity"
)

// Credential is a capability claim issued to an agent.
type Credential struct {
	ID           string    `json:"credential_id"`
	Subject      string    `json:"subject"` // agent DID
	Issuer       string    `json:"issuer"`
	Capabilities []string  `json:"capabilities"`
	Proof        string    `json:"proof"` // compact JWT binding subject and capabilities
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store lists the credentials associated with a resolved identity.
type Store interface {
	ListCredentials(ctx context.Context, doc *identity.Document) ([]Credential, error)
}

// InMemoryStore holds credentials in memory, keyed by subject DID.
type InMemoryStore struct {
	mu    sync.RWMutex
	creds map[string][]Credential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{creds: make(map[string][]Credential)}
}

// Put appends a credential under its subject DID.
func (s *InMemoryStore) Put(cred Credential) error {
	if cred.Subject == "" {
		return errors.New("credentials: credential has no subject")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Subject] = append(s.creds[cred.Subject], cred)
	return nil
}

// ListCredentials implements Store.
func (s *InMemoryStore) ListCredentials(ctx context.Context, doc *identity.Document) ([]Credential, error) {
	if doc == nil {
		return nil, errors.New("credentials: nil identity document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.creds[doc.DID]
	out := make([]Credential, len(stored))
	copy(out, stored)
	return out, nil
}
