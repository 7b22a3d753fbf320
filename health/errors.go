package health

import "errors"

// Sentinel errors carried in Result.Error or returned by Aggregator.Check.
var (
	ErrCheckFailed     = errors.New("health: check failed")
	ErrCheckTimeout    = errors.New("health: check did not finish in time")
	ErrCheckerNotFound = errors.New("health: no checker with that name")
)
