// Package exporters builds the OpenTelemetry exporters the observer can use.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrEndpointNotConfigured indicates a required OTLP endpoint variable is not set.
var ErrEndpointNotConfigured = errors.New("observe: endpoint not configured")

// NewTracingExporter creates a span exporter by name: stdout, otlp or none.
// "none" and "" return a nil exporter. A nil w means os.Stdout.
func NewTracingExporter(ctx context.Context, name string, w io.Writer) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(orStdout(w)))

	case "otlp":
		if !endpointSet("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ErrEndpointNotConfigured)
		}
		return otlptracegrpc.New(ctx)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter: %q", name)
	}
}

// Metrics is a metrics reader plus, for pull exporters, the handler that
// serves it.
type Metrics struct {
	Reader  sdkmetric.Reader
	Handler http.Handler
}

// NewMetrics creates a metrics reader by name: stdout, otlp, prometheus or
// none. Each prometheus reader gets its own registry so several observers
// can coexist in one process.
func NewMetrics(ctx context.Context, name string, w io.Writer) (Metrics, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(orStdout(w)))
		if err != nil {
			return Metrics{}, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return Metrics{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "otlp":
		if !endpointSet("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") {
			return Metrics{}, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrEndpointNotConfigured)
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return Metrics{}, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return Metrics{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "prometheus":
		reg := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return Metrics{}, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return Metrics{
			Reader:  exp,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}, nil

	case "none", "":
		return Metrics{}, nil

	default:
		return Metrics{}, fmt.Errorf("unknown metrics exporter: %q", name)
	}
}

func endpointSet(keys ...string) bool {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return true
		}
	}
	return false
}

func orStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
