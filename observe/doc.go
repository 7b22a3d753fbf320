// Package observe provides logging, tracing and metrics for credential
// fetches and cache decisions.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The server wires WrapFetch around the login fetcher
// and registers CacheListener with the cache coordinator.
//
// Log output is JSON via log/slog. Fields that can carry credentials or
// cookies are replaced with "[REDACTED]" before they are written.
package observe
