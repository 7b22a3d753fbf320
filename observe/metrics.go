package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// CacheEvent names a cache coordinator decision.
type CacheEvent string

// Cache events, one counter each.
const (
	CacheHit    CacheEvent = "hits"
	CacheMiss   CacheEvent = "misses"
	CacheStore  CacheEvent = "stores"
	CacheShared CacheEvent = "shared"
)

// Metrics records fetch and cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one fetch with its duration and error status.
	RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCache counts one cache decision.
	RecordCache(ctx context.Context, meta OpMeta, event CacheEvent)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cache        map[CacheEvent]metric.Int64Counter
}

// NewMetrics creates the session instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"session.fetch.total",
		metric.WithDescription("Total number of credential fetches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"session.fetch.errors",
		metric.WithDescription("Total number of failed credential fetches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"session.fetch.duration_ms",
		metric.WithDescription("Credential fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m := &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cache:        make(map[CacheEvent]metric.Int64Counter, 4),
	}
	for _, ev := range []CacheEvent{CacheHit, CacheMiss, CacheStore, CacheShared} {
		c, err := meter.Int64Counter(
			"session.cache."+string(ev),
			metric.WithDescription("Cache coordinator "+string(ev)),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			return nil, err
		}
		m.cache[ev] = c
	}
	return m, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, meta OpMeta, event CacheEvent) {
	if c, ok := m.cache[event]; ok {
		c.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCache(context.Context, OpMeta, CacheEvent)           {}
