package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Keyer derives store keys from identities.
//
// Contract:
// - Determinism: the same namespace and identity must produce the same key.
// - Privacy: keys may appear in logs and metrics, so they must not reveal
//   the identity.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(namespace, identity string) (string, error)
}

// DefaultKeyer generates SHA-256 based keys.
type DefaultKeyer struct {
	caseFold bool
}

// KeyerOption configures a DefaultKeyer.
type KeyerOption func(*DefaultKeyer)

// WithCaseFold makes identities that differ only in case or surrounding
// whitespace share a slot. Only use it for sites whose logins are
// case-insensitive.
func WithCaseFold() KeyerOption {
	return func(k *DefaultKeyer) { k.caseFold = true }
}

// NewDefaultKeyer creates a new default keyer. Without options every
// distinct identity string gets its own slot.
func NewDefaultKeyer(opts ...KeyerOption) *DefaultKeyer {
	k := &DefaultKeyer{}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Key generates a deterministic key.
// Format: <namespace>:<hash>
// where hash is the first 16 hex characters of SHA-256(identity).
func (k *DefaultKeyer) Key(namespace, identity string) (string, error) {
	if err := ValidateKey(identity); err != nil {
		return "", err
	}
	if k.caseFold {
		identity = strings.ToLower(strings.TrimSpace(identity))
	}
	return namespace + ":" + Fingerprint(identity), nil
}

// Fingerprint returns a short, stable, non-reversible tag for an identity,
// hashed byte for byte.
func Fingerprint(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:8])
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
