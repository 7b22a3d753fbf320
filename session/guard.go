package session

import (
	"context"
	"errors"

	"github.com/blankcnvs/so-auth/resilience"
)

// Guard runs a Fetcher through a resilience.Executor.
//
// Invalid input is rejected before the executor so it never trips a breaker
// or consumes a rate-limit token. Rejections from the executor come back as
// a FetchError with Stage "guard" wrapping the resilience sentinel.
type Guard struct {
	next     Fetcher
	executor *resilience.Executor
}

// NewGuard wraps next. A nil executor runs next unguarded.
func NewGuard(next Fetcher, executor *resilience.Executor) (*Guard, error) {
	if next == nil {
		return nil, ErrNilFetcher
	}
	if executor == nil {
		executor = resilience.NewExecutor()
	}
	return &Guard{next: next, executor: executor}, nil
}

// Executor returns the wrapped executor.
func (g *Guard) Executor() *resilience.Executor {
	return g.executor
}

// Fetch implements Fetcher.
func (g *Guard) Fetch(ctx context.Context, identity, secret string) (Result, error) {
	if err := Validate(identity, secret); err != nil {
		return Result{}, err
	}

	done := make(chan Result, 1)
	err := g.executor.Execute(ctx, func(ctx context.Context) error {
		res, err := g.next.Fetch(ctx, identity, secret)
		if err != nil {
			return err
		}
		done <- res
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) || IsValidation(err) {
			return Result{}, err
		}
		return Result{}, stageError(StageGuard, err)
	}
	return <-done, nil
}
