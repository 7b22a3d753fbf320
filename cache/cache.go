package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for an identity.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilFetcher = errors.New("cache: fetcher is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrInvalidTTL = errors.New("cache: ttl must be positive")

	// ErrFetchPanicked wraps a panic raised by a Fetcher.
	ErrFetchPanicked = errors.New("cache: fetcher panicked")
)

// Fetcher produces a fresh value for an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch should honor cancellation/deadlines.
// - Errors: any error means no value; the coordinator never caches it.
// - Ownership: secret is only borrowed for the duration of the call.
type Fetcher[V any] interface {
	Fetch(ctx context.Context, identity, secret string) (V, error)
}

// FetcherFunc is an adapter to allow ordinary functions to be used as Fetchers.
type FetcherFunc[V any] func(ctx context.Context, identity, secret string) (V, error)

// Fetch calls f.
func (f FetcherFunc[V]) Fetch(ctx context.Context, identity, secret string) (V, error) {
	return f(ctx, identity, secret)
}

// Clock reports the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// ValidateKey checks if an identity is usable as a cache key.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
