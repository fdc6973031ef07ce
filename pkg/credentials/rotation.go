package credentials

import (
	"context"
	"time"

	"github.com/noetic-systems/noesis/pkg/kms"
)

// RotationPolicy reports whether the key material backing an agent's
// credentials is due for rotation. Rotation due is advisory: the wake-up
// protocol records it as a warning and proceeds.
type RotationPolicy interface {
	NeedsRotation(ctx context.Context, agentDID string) (bool, error)
}

// KeyAgePolicy flags rotation once the active signing key exceeds MaxAge.
type KeyAgePolicy struct {
	Keys   *kms.SigningKeystore
	MaxAge time.Duration
}

// NeedsRotation implements RotationPolicy.
func (p *KeyAgePolicy) NeedsRotation(ctx context.Context, agentDID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.Keys == nil || p.MaxAge <= 0 {
		return false, nil
	}
	return p.Keys.ActiveAge() > p.MaxAge, nil
}
