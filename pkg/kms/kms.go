// Package kms manages the Ed25519 signing keys backing agent attestations.
//
// Keys are persisted in a file-backed, versioned keystore. New keys can be
// generated while old keys remain available so attestations signed before a
// rotation stay verifiable. The age of the active key drives the advisory
// rotation check performed during wake-up.
package kms

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Keystore is the on-disk JSON format for persisted signing keys.
type Keystore struct {
	ActiveVersion int                  `json:"active_version"`
	Keys          map[string]StoredKey `json:"keys"` // version -> stored key
}

// StoredKey is a single persisted key version.
type StoredKey struct {
	Seed     string    `json:"seed"` // base64-encoded 32-byte Ed25519 seed
	IssuedAt time.Time `json:"issued_at"`
}

// SigningKeystore is a file-backed store of versioned Ed25519 signing keys.
type SigningKeystore struct {
	mu     sync.RWMutex
	store  Keystore
	path   string
	keys   map[int]ed25519.PrivateKey // decoded keys cache
	issued map[int]time.Time
	clock  func() time.Time
}

// NewEphemeralKeystore generates a process-lifetime key that is never
// written to disk. Suitable for tests and default wiring where no key
// material should outlive the process.
func NewEphemeralKeystore() (*SigningKeystore, error) {
	seed, key, err := generateSeed()
	if err != nil {
		return nil, err
	}

	ks := &SigningKeystore{
		keys:   map[int]ed25519.PrivateKey{1: key},
		issued: make(map[int]time.Time),
		clock:  time.Now,
	}
	now := ks.clock().UTC()
	ks.issued[1] = now
	ks.store = Keystore{
		ActiveVersion: 1,
		Keys: map[string]StoredKey{
			"1": {Seed: base64.StdEncoding.EncodeToString(seed), IssuedAt: now},
		},
	}
	return ks, nil
}

// NewSigningKeystore loads or creates a keystore at the given path.
// If the file does not exist, a new key (version 1) is generated.
func NewSigningKeystore(keystorePath string) (*SigningKeystore, error) {
	ks := &SigningKeystore{
		path:   keystorePath,
		keys:   make(map[int]ed25519.PrivateKey),
		issued: make(map[int]time.Time),
		clock:  time.Now,
	}

	if _, err := os.Stat(keystorePath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(keystorePath), 0700); err != nil {
			return nil, fmt.Errorf("kms: create dir: %w", err)
		}

		seed, key, err := generateSeed()
		if err != nil {
			return nil, err
		}

		now := ks.clock().UTC()
		ks.store = Keystore{
			ActiveVersion: 1,
			Keys: map[string]StoredKey{
				"1": {Seed: base64.StdEncoding.EncodeToString(seed), IssuedAt: now},
			},
		}
		ks.keys[1] = key
		ks.issued[1] = now

		if err := ks.persist(); err != nil {
			return nil, err
		}
		return ks, nil
	}

	data, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("kms: read keystore: %w", err)
	}

	if err := json.Unmarshal(data, &ks.store); err != nil {
		return nil, fmt.Errorf("kms: parse keystore: %w", err)
	}

	for vStr, stored := range ks.store.Keys {
		v, err := strconv.Atoi(vStr)
		if err != nil {
			return nil, fmt.Errorf("kms: invalid version %q: %w", vStr, err)
		}
		seed, err := base64.StdEncoding.DecodeString(stored.Seed)
		if err != nil {
			return nil, fmt.Errorf("kms: decode seed v%d: %w", v, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("kms: seed v%d invalid length %d (need %d)", v, len(seed), ed25519.SeedSize)
		}
		ks.keys[v] = ed25519.NewKeyFromSeed(seed)
		ks.issued[v] = stored.IssuedAt
	}

	if _, ok := ks.keys[ks.store.ActiveVersion]; !ok {
		return nil, fmt.Errorf("kms: active version %d not in keystore", ks.store.ActiveVersion)
	}

	return ks, nil
}

// WithClock overrides the clock for testing.
func (k *SigningKeystore) WithClock(clock func() time.Time) *SigningKeystore {
	k.clock = clock
	return k
}

// ActiveKey returns the active private key and its version.
func (k *SigningKeystore) ActiveKey() (ed25519.PrivateKey, int) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys[k.store.ActiveVersion], k.store.ActiveVersion
}

// ActiveVersion returns the current active key version.
func (k *SigningKeystore) ActiveVersion() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.store.ActiveVersion
}

// ActiveIssuedAt returns the issue time of the active key.
func (k *SigningKeystore) ActiveIssuedAt() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.issued[k.store.ActiveVersion]
}

// ActiveAge returns how long the active key has been in service.
func (k *SigningKeystore) ActiveAge() time.Duration {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.clock().Sub(k.issued[k.store.ActiveVersion])
}

// PublicKey returns the public key for a stored version.
func (k *SigningKeystore) PublicKey(version int) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	priv, ok := k.keys[version]
	if !ok {
		return nil, false
	}
	return priv.Public().(ed25519.PublicKey), true
}

// Rotate generates a new key version and persists the updated keystore.
// Old keys remain available through PublicKey for verification.
func (k *SigningKeystore) Rotate() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	newVersion := k.store.ActiveVersion + 1

	seed, key, err := generateSeed()
	if err != nil {
		return 0, err
	}

	now := k.clock().UTC()
	k.store.Keys[strconv.Itoa(newVersion)] = StoredKey{
		Seed:     base64.StdEncoding.EncodeToString(seed),
		IssuedAt: now,
	}
	k.store.ActiveVersion = newVersion
	k.keys[newVersion] = key
	k.issued[newVersion] = now

	if err := k.persist(); err != nil {
		return 0, err
	}

	return newVersion, nil
}

// persist writes the keystore to disk with restricted permissions.
// Ephemeral keystores have no path and are never written.
func (k *SigningKeystore) persist() error {
	if k.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(k.store, "", "  ")
	if err != nil {
		return fmt.Errorf("kms: marshal keystore: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0600); err != nil {
		return fmt.Errorf("kms: write keystore: %w", err)
	}
	return nil
}

func generateSeed() ([]byte, ed25519.PrivateKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, nil, fmt.Errorf("kms: generate seed: %w", err)
	}
	return seed, ed25519.NewKeyFromSeed(seed), nil
}
