// Package health reports whether the cookie service can do its job.
//
// A Checker reports Healthy, Degraded or Unhealthy. The Aggregator runs a set
// of checkers under one deadline and folds their results into an overall
// status. The service registers three:
//
//   - memory: heap usage against a threshold.
//   - cache: number of cached sessions against an optional ceiling.
//   - login: the login circuit breaker; an open breaker is Degraded because
//     cached sessions are still served.
//
// HTTP handlers expose the status:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)             // /healthz, /readyz, /health, /health/{name}
//	mux.Handle("GET /{$}", health.StatusHandler("Sophia Auth Service Running"))
package health
