package resilience

import "errors"

// Sentinel errors returned instead of running the guarded operation, or in
// place of its result.
var (
	ErrCircuitOpen       = errors.New("resilience: circuit open, login site is failing")
	ErrRateLimitExceeded = errors.New("resilience: too many logins, rate limit exceeded")
	ErrBulkheadFull      = errors.New("resilience: too many logins in flight")
	ErrTimeout           = errors.New("resilience: login timed out")
)
