// Package identity provides the decentralized identity registry boundary
// consumed by the wake-up protocol. Resolution internals (DID methods,
// network lookups) live behind the Registry interface; this package ships an
// in-memory implementation used by tests and the local fixture world.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by Resolve when no document exists for a DID.
var ErrNotFound = errors.New("identity: DID not found")

// VerificationMethod is a public key bound to a DID document.
type VerificationMethod struct {
	ID           string `json:"id"`
	Type         string `json:"type"` // e.g. "Ed25519VerificationKey2020"
	Controller   string `json:"controller"`
	PublicKeyHex string `json:"public_key_hex"`
}

// Document is a resolved DID document.
type Document struct {
	DID                 string               `json:"did"`
	Controller          string               `json:"controller,omitempty"`
	VerificationMethods []VerificationMethod `json:"verification_methods,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Registry resolves agent DIDs to identity documents.
type Registry interface {
	// Resolve returns the document for the DID, or ErrNotFound.
	Resolve(ctx context.Context, did string) (*Document, error)
}

// InMemoryRegistry holds documents in memory.
type InMemoryRegistry struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{docs: make(map[string]*Document)}
}

// Register stores a document, keyed by its DID.
func (r *InMemoryRegistry) Register(doc *Document) error {
	if doc == nil {
		return errors.New("identity: nil document")
	}
	if !strings.HasPrefix(doc.DID, "did:") {
		return fmt.Errorf("identity: malformed DID %q", doc.DID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	r.docs[doc.DID] = doc
	return nil
}

// Resolve implements Registry.
func (r *InMemoryRegistry) Resolve(ctx context.Context, did string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("identity: resolve %s: %w", did, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[did]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}
