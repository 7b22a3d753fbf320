package cache

import "time"

// DefaultTTL is how long a harvested session stays servable.
const DefaultTTL = 25 * time.Minute

// Policy configures caching behavior.
type Policy struct {
	// TTL is the fixed time-to-live applied to every entry. Must be positive.
	TTL time.Duration

	// SingleFlight collapses concurrent misses for the same identity into a
	// single Fetcher call. When false, each caller fetches on its own and the
	// last successful store wins.
	SingleFlight bool

	// SweepInterval is how often RunSweeper drops stale entries.
	// Zero disables sweeping; lazy expiry still guarantees correctness.
	SweepInterval time.Duration
}

// DefaultPolicy returns the default policy.
// TTL: 25 minutes, SingleFlight: true, SweepInterval: 0
func DefaultPolicy() Policy {
	return Policy{
		TTL:          DefaultTTL,
		SingleFlight: true,
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.TTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
