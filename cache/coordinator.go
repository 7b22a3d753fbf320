package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Listener observes coordinator decisions. Keys passed to a Listener are the
// derived store keys, never raw identities.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: callbacks must return quickly and must not panic.
type Listener interface {
	// OnHit is called when a fresh entry is served.
	OnHit(ctx context.Context, key string)
	// OnMiss is called when no fresh entry exists and a fetch is needed.
	OnMiss(ctx context.Context, key string)
	// OnStore is called after a successful fetch is stored.
	OnStore(ctx context.Context, key string)
	// OnShared is called when a caller received another caller's fetch.
	OnShared(ctx context.Context, key string)
}

// Option configures a Coordinator.
type Option func(*settings)

type settings struct {
	clock     Clock
	keyer     Keyer
	listener  Listener
	namespace string
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithKeyer sets the key derivation. Default: DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(s *settings) {
		if k != nil {
			s.keyer = k
		}
	}
}

// WithListener sets the decision listener.
func WithListener(l Listener) Option {
	return func(s *settings) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithNamespace prefixes every store key. Default: "session".
func WithNamespace(ns string) Option {
	return func(s *settings) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// Coordinator serves a possibly-cached value for an identity and populates
// the cache from a Fetcher.
//
// Contract:
// - Concurrency: safe for concurrent use. The store lock is never held
//   across a fetch.
// - Errors: Fetcher errors are returned unchanged and never cached.
// - Freshness: a returned value is never older than the TTL.
type Coordinator[V any] struct {
	store   *MemoryStore[V]
	fetcher Fetcher[V]
	policy  Policy
	settings
	flights singleflight.Group
}

// NewCoordinator creates a coordinator over fetcher.
func NewCoordinator[V any](fetcher Fetcher[V], policy Policy, opts ...Option) (*Coordinator[V], error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := settings{
		clock:     SystemClock,
		keyer:     NewDefaultKeyer(),
		listener:  noopListener{},
		namespace: "session",
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Coordinator[V]{
		store:    NewMemoryStore[V](),
		fetcher:  fetcher,
		policy:   policy,
		settings: s,
	}, nil
}

// GetOrFetch returns the cached value for identity if it is still fresh,
// otherwise fetches a new one, stores it and returns it.
func (c *Coordinator[V]) GetOrFetch(ctx context.Context, identity, secret string) (V, error) {
	key, err := c.keyer.Key(c.namespace, identity)
	if err != nil {
		var zero V
		return zero, err
	}

	if e, ok := c.store.Get(key); ok && e.Fresh(c.clock.Now(), c.policy.TTL) {
		c.listener.OnHit(ctx, key)
		return e.Value, nil
	}

	c.listener.OnMiss(ctx, key)
	return c.fetch(ctx, key, identity, secret)
}

// Refresh bypasses any fresh entry, fetches and replaces it on success.
// On failure the existing entry is left as it was.
func (c *Coordinator[V]) Refresh(ctx context.Context, identity, secret string) (V, error) {
	key, err := c.keyer.Key(c.namespace, identity)
	if err != nil {
		var zero V
		return zero, err
	}
	c.listener.OnMiss(ctx, key)
	return c.fetch(ctx, key, identity, secret)
}

// Invalidate drops the entry for identity. Idempotent.
// A fetch already in flight for identity still stores its result, but new
// callers no longer join it.
func (c *Coordinator[V]) Invalidate(identity string) error {
	key, err := c.keyer.Key(c.namespace, identity)
	if err != nil {
		return err
	}
	c.flights.Forget(key)
	c.store.Delete(key)
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (c *Coordinator[V]) Len() int {
	return c.store.Len()
}

// Policy returns the coordinator's policy.
func (c *Coordinator[V]) Policy() Policy {
	return c.policy
}

// Sweep drops stale entries and returns how many were removed.
func (c *Coordinator[V]) Sweep() int {
	return c.store.Sweep(c.clock.Now(), c.policy.TTL)
}

// RunSweeper sweeps every Policy.SweepInterval until ctx is done.
// It returns immediately when sweeping is disabled.
func (c *Coordinator[V]) RunSweeper(ctx context.Context) {
	if c.policy.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.policy.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Coordinator[V]) fetch(ctx context.Context, key, identity, secret string) (V, error) {
	if !c.policy.SingleFlight {
		return c.fetchAndStore(ctx, key, identity, secret)
	}

	// The shared fetch outlives any single caller's cancellation; each caller
	// stops waiting on its own context. Fetchers bound themselves with their
	// own timeout.
	shared := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		return c.fetchAndStore(shared, key, identity, secret)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.listener.OnShared(ctx, key)
		}
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// fetchAndStore turns a Fetcher panic into ErrFetchPanicked. Under
// single-flight the fetch runs on a goroutine no handler can recover.
func (c *Coordinator[V]) fetchAndStore(ctx context.Context, key, identity, secret string) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, err = zero, fmt.Errorf("%w: %v", ErrFetchPanicked, r)
		}
	}()

	v, err = c.fetcher.Fetch(ctx, identity, secret)
	if err != nil {
		var zero V
		return zero, err
	}

	c.store.Set(key, Entry[V]{Value: v, StoredAt: c.clock.Now()})
	c.listener.OnStore(ctx, key)
	return v, nil
}

type noopListener struct{}

func (noopListener) OnHit(context.Context, string)    {}
func (noopListener) OnMiss(context.Context, string)   {}
func (noopListener) OnStore(context.Context, string)  {}
func (noopListener) OnShared(context.Context, string) {}
