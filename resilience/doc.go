// Package resilience guards slow external calls such as a scripted login.
//
// The patterns compose through Executor:
//
//   - Rate Limiter: spaces out calls to a third party (golang.org/x/time/rate).
//   - Bulkhead: caps how many calls run at once (golang.org/x/sync/semaphore).
//   - Circuit Breaker: stops calling a dependency that keeps failing.
//   - Timeout: bounds each call.
//
// Nothing here retries. Callers that want another attempt
// issue a new request.
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 1, Burst: 3})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithTimeout(time.Minute),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return login(ctx)
//	})
package resilience
