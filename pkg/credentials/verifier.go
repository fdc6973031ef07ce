package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CapabilityClaims extends the registered JWT claims with the capability set
// asserted by a credential.
type CapabilityClaims struct {
	jwt.RegisteredClaims
	Capabilities []string `json:"capabilities,omitempty"`
}

// Verifier checks the cryptographic validity of a credential.
type Verifier interface {
	// Verify reports whether the credential's proof is valid. A false return
	// with nil error means the proof parsed but did not check out; an error
	// means verification could not be performed.
	Verify(ctx context.Context, cred Credential) (bool, error)
}

// JWTVerifier verifies EdDSA JWT proofs against a key set.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
}

func NewJWTVerifier(ks KeySet) *JWTVerifier {
	return &JWTVerifier{keyFunc: ks.KeyFunc()}
}

// NewJWTVerifierWithKeyFunc verifies against an explicit key lookup, for
// verifiers that obtain issuer keys from somewhere other than a KeySet.
func NewJWTVerifierWithKeyFunc(fn jwt.Keyfunc) *JWTVerifier {
	return &JWTVerifier{keyFunc: fn}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, cred Credential) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if cred.Proof == "" {
		return false, nil
	}

	token, err := jwt.ParseWithClaims(cred.Proof, &CapabilityClaims{}, v.keyFunc)
	if err != nil {
		// Signature or structural failure is a verification verdict, not an
		// infrastructure error.
		return false, nil
	}

	claims, ok := token.Claims.(*CapabilityClaims)
	if !ok || !token.Valid {
		return false, nil
	}

	// The proof must be bound to the credential's subject.
	if claims.Subject != cred.Subject {
		return false, nil
	}

	return true, nil
}

// Issue creates a credential whose proof is an EdDSA JWT signed by the key
// set. Used by tests and the local fixture world; production credentials are
// issued by an external issuer.
func Issue(ctx context.Context, ks KeySet, issuer, subject string, capabilities []string, ttl time.Duration) (Credential, error) {
	now := time.Now().UTC()
	id := uuid.New().String()

	claims := CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Capabilities: capabilities,
	}

	proof, err := ks.Sign(ctx, claims)
	if err != nil {
		return Credential{}, fmt.Errorf("credentials: sign proof: %w", err)
	}

	return Credential{
		ID:           id,
		Subject:      subject,
		Issuer:       issuer,
		Capabilities: capabilities,
		Proof:        proof,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}, nil
}
