package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noetic-systems/noesis/pkg/identity"
)

func TestRegistry_ResolveRegistered(t *testing.T) {
	reg := identity.NewInMemoryRegistry()

	doc := &identity.Document{
		DID: "did:noesis:agent-1",
		VerificationMethods: []identity.VerificationMethod{
			{ID: "did:noesis:agent-1#key-1", Type: "Ed25519VerificationKey2020"},
		},
	}
	require.NoError(t, reg.Register(doc))

	got, err := reg.Resolve(context.Background(), "did:noesis:agent-1")
	require.NoError(t, err)
	assert.Equal(t, "did:noesis:agent-1", got.DID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Len(t, got.VerificationMethods, 1)
}

func TestRegistry_ResolveUnknownDID(t *testing.T) {
	reg := identity.NewInMemoryRegistry()

	_, err := reg.Resolve(context.Background(), "did:noesis:ghost")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestRegistry_RejectsMalformedDID(t *testing.T) {
	reg := identity.NewInMemoryRegistry()

	err := reg.Register(&identity.Document{DID: "not-a-did"})
	assert.Error(t, err)

	err = reg.Register(nil)
	assert.Error(t, err)
}

func TestRegistry_ResolveCancelledContext(t *testing.T) {
	reg := identity.NewInMemoryRegistry()
	require.NoError(t, reg.Register(&identity.Document{DID: "did:noesis:agent-1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Resolve(ctx, "did:noesis:agent-1")
	assert.ErrorIs(t, err, context.Canceled)
}
