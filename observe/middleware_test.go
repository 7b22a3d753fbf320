package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type telemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
	mw     *Middleware
}

func newTelemetry(t *testing.T, opts ...MiddlewareOption) *telemetry {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}

	logs := &bytes.Buffer{}
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", logs), opts...)
	return &telemetry{spans: spans, reader: reader, logs: logs, mw: mw}
}

func (tl *telemetry) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tl.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range s.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return 0
}

func hashKey(identity string) string { return "sophia:hashed-" + identity[:2] }

// TestWrapFetch_SuccessPath verifies a successful fetch records telemetry.
func TestWrapFetch_SuccessPath(t *testing.T) {
	tl := newTelemetry(t, WithKeyFunc(hashKey))

	fetch := WrapFetch(tl.mw, "sophia", func(ctx context.Context, identity, secret string) (string, error) {
		return "cookies", nil
	})
	got, err := fetch(context.Background(), "u1@example.com", "hunter2")
	if err != nil || got != "cookies" {
		t.Fatalf("fetch() = %q, %v", got, err)
	}

	spans := tl.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "session.fetch.sophia" {
		t.Errorf("span name = %q, want session.fetch.sophia", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	if n := tl.sum(t, "session.fetch.total"); n != 1 {
		t.Errorf("session.fetch.total = %d, want 1", n)
	}
	if n := tl.sum(t, "session.fetch.errors"); n != 0 {
		t.Errorf("session.fetch.errors = %d, want 0", n)
	}

	out := tl.logs.String()
	if !strings.Contains(out, `"msg":"fetch completed"`) || !strings.Contains(out, "sophia:hashed-u1") {
		t.Errorf("log output missing completion entry: %s", out)
	}
}

// TestWrapFetch_ErrorPath verifies a failed fetch records error telemetry.
func TestWrapFetch_ErrorPath(t *testing.T) {
	tl := newTelemetry(t)
	boom := errors.New("login page unreachable")

	fetch := WrapFetch(tl.mw, "sophia", func(ctx context.Context, identity, secret string) (int, error) {
		return 0, boom
	})
	if _, err := fetch(context.Background(), "u1", "pw"); err != boom {
		t.Fatalf("error = %v, want the original error unchanged", err)
	}

	span := tl.spans.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", span.Status().Code)
	}
	var flagged bool
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key("session.error") && kv.Value.AsBool() {
			flagged = true
		}
	}
	if !flagged {
		t.Error("span missing session.error=true")
	}
	if n := tl.sum(t, "session.fetch.errors"); n != 1 {
		t.Errorf("session.fetch.errors = %d, want 1", n)
	}
	if !strings.Contains(tl.logs.String(), "login page unreachable") {
		t.Errorf("error not logged: %s", tl.logs.String())
	}
}

// TestWrapFetch_NeverLogsCredentials verifies identity and secret stay out of telemetry.
func TestWrapFetch_NeverLogsCredentials(t *testing.T) {
	tl := newTelemetry(t)

	fetch := WrapFetch(tl.mw, "sophia", func(ctx context.Context, identity, secret string) (string, error) {
		return "", errors.New("rejected")
	})
	_, _ = fetch(context.Background(), "someone@example.com", "hunter2")

	out := tl.logs.String()
	for _, leaked := range []string{"someone@example.com", "hunter2"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log output leaked %q: %s", leaked, out)
		}
	}
	for _, kv := range tl.spans.Ended()[0].Attributes() {
		if strings.Contains(kv.Value.Emit(), "someone@example.com") {
			t.Errorf("span attribute %s leaked the identity", kv.Key)
		}
	}
}

// TestCacheListener_CountsEvents verifies each decision increments its counter.
func TestCacheListener_CountsEvents(t *testing.T) {
	tl := newTelemetry(t)
	l := tl.mw.CacheListener("sophia")
	ctx := context.Background()

	l.OnMiss(ctx, "sophia:aa")
	l.OnStore(ctx, "sophia:aa")
	l.OnHit(ctx, "sophia:aa")
	l.OnHit(ctx, "sophia:aa")
	l.OnShared(ctx, "sophia:aa")

	tests := map[string]int64{
		"session.cache.misses": 1,
		"session.cache.stores": 1,
		"session.cache.hits":   2,
		"session.cache.shared": 1,
	}
	for name, want := range tests {
		if got := tl.sum(t, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if !strings.Contains(tl.logs.String(), "returning cached cookies") {
		t.Errorf("hit not logged at debug: %s", tl.logs.String())
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)

	fetch := WrapFetch(mw, "sophia", func(ctx context.Context, identity, secret string) (bool, error) {
		return true, nil
	})
	if ok, err := fetch(context.Background(), "u1", "pw"); !ok || err != nil {
		t.Errorf("fetch() = %v, %v", ok, err)
	}
	mw.CacheListener("sophia").OnHit(context.Background(), "k")
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); err != ErrNilObserver {
		t.Errorf("MiddlewareFromObserver(nil) = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "so-auth"})
	if err != nil {
		t.Fatalf("NewObserver() error: %v", err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver() = %v, %v", mw, err)
	}
	if mw.Logger() == nil {
		t.Error("Logger() should not be nil")
	}
}
