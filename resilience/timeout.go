package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 60 seconds
	Timeout time.Duration
}

// Timeout bounds operations in time.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with a deadline. If the deadline passes first, Execute
// returns ErrTimeout without waiting; op sees its context cancelled and is
// expected to release its resources and return.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return outcome(ctx, err)
	case <-ctx.Done():
		return expired(ctx, done)
	}
}

// expired settles a call whose context is done. An op that finished at the
// same instant still wins.
func expired(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return outcome(ctx, err)
	default:
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

func outcome(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
