package health

import (
	"context"
	"fmt"
	"time"

	"github.com/blankcnvs/so-auth/resilience"
)

// CacheChecker reports the number of cached sessions. With a positive
// ceiling, exceeding it is Degraded since entries are only swept lazily.
type CacheChecker struct {
	entries    func() int
	maxEntries int
}

// NewCacheChecker creates a checker over an entry counter.
func NewCacheChecker(entries func() int, maxEntries int) *CacheChecker {
	return &CacheChecker{entries: entries, maxEntries: maxEntries}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports the current entry count.
func (c *CacheChecker) Check(context.Context) Result {
	n := c.entries()
	details := map[string]any{"entries": n}
	if c.maxEntries > 0 {
		details["max_entries"] = c.maxEntries
		if n > c.maxEntries {
			return Degraded(fmt.Sprintf("%d cached sessions exceed %d", n, c.maxEntries)).WithDetails(details)
		}
	}
	return Healthy(fmt.Sprintf("%d cached sessions", n)).WithDetails(details)
}

// BreakerChecker reports the login circuit breaker. A tripped breaker is
// Degraded rather than Unhealthy: cached sessions are still served.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for cb.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

// Name returns the name of this checker.
func (c *BreakerChecker) Name() string {
	return "login"
}

// Check reports the breaker state.
func (c *BreakerChecker) Check(context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
		"rejected": m.Rejected,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure.UTC().Format(time.RFC3339)
	}

	switch m.State {
	case resilience.StateOpen:
		return Degraded("login circuit open").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("login circuit probing").WithDetails(details)
	default:
		return Healthy("login circuit closed").WithDetails(details)
	}
}
