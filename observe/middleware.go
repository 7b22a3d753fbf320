package observe

import (
	"context"
	"time"

	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FetchFunc is the shape of a credential fetch.
type FetchFunc[V any] func(ctx context.Context, identity, secret string) (V, error)

// Middleware wraps fetches with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: wrapped functions are safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: the secret is passed through and never recorded.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	keyOf   func(identity string) string
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithKeyFunc sets how identities become loggable keys. Without it fetches
// are logged without a key. keyOf must not return the raw identity.
func WithKeyFunc(keyOf func(identity string) string) MiddlewareOption {
	return func(m *Middleware) { m.keyOf = keyOf }
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger, opts ...MiddlewareOption) *Middleware {
	if tracer == nil {
		tracer = NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	m := &Middleware{tracer: tracer, metrics: metrics, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer, opts ...MiddlewareOption) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger(), opts...), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// WrapFetch instruments fn as operation "fetch" of service.
func WrapFetch[V any](m *Middleware, service string, fn FetchFunc[V]) FetchFunc[V] {
	return func(ctx context.Context, identity, secret string) (V, error) {
		meta := OpMeta{Service: service, Op: "fetch"}
		if m.keyOf != nil {
			meta.Key = m.keyOf(identity)
		}

		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		v, err := fn(ctx, identity, secret)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, meta, duration, err)

		logger := m.logger.WithOp(meta)
		fields := []Field{{Key: "duration_ms", Value: float64(duration.Milliseconds())}}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "fetch failed", fields...)
		} else {
			logger.Info(ctx, "fetch completed", fields...)
		}

		return v, err
	}
}

// CacheListener reports cache coordinator decisions as metrics and debug
// logs. It satisfies cache.Listener.
type CacheListener struct {
	service string
	metrics Metrics
	logger  Logger
}

// CacheListener returns a listener for service sharing m's metrics and logger.
func (m *Middleware) CacheListener(service string) *CacheListener {
	return &CacheListener{service: service, metrics: m.metrics, logger: m.logger}
}

// OnHit implements cache.Listener.
func (l *CacheListener) OnHit(ctx context.Context, key string) {
	l.record(ctx, key, CacheHit, "returning cached cookies")
}

// OnMiss implements cache.Listener.
func (l *CacheListener) OnMiss(ctx context.Context, key string) {
	l.record(ctx, key, CacheMiss, "getting fresh cookies")
}

// OnStore implements cache.Listener.
func (l *CacheListener) OnStore(ctx context.Context, key string) {
	l.record(ctx, key, CacheStore, "cached cookies")
}

// OnShared implements cache.Listener.
func (l *CacheListener) OnShared(ctx context.Context, key string) {
	l.record(ctx, key, CacheShared, "joined in-flight fetch")
}

func (l *CacheListener) record(ctx context.Context, key string, ev CacheEvent, msg string) {
	meta := OpMeta{Service: l.service, Op: "cache", Key: key}
	l.metrics.RecordCache(ctx, meta, ev)
	l.logger.WithOp(meta).Debug(ctx, msg)
}
