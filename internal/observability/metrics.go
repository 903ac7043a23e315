// Package observability wires the runner's and worker's OpenTelemetry
// instrumentation to an actual exporter, and exposes the small HTTP
// surface (health, readiness, metrics) that cmd/mpsim-worker serves
// alongside its NATS transport.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config identifies the process for both the metrics and tracing exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
}

// MetricsProvider owns the global OpenTelemetry MeterProvider. Once
// installed, internal/runner's Metrics (and any other package that calls
// otel.GetMeterProvider()) push through the same OTLP exporter.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
}

// NewMetricsProvider creates an OTLP HTTP metrics exporter, installs it as
// the global MeterProvider, and returns a handle for shutdown.
func NewMetricsProvider(ctx context.Context, cfg Config) (*MetricsProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to create OTLP metrics exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return &MetricsProvider{provider: provider}, nil
}

// Shutdown flushes and stops the metrics provider.
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil || mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return mp.provider.Shutdown(ctx)
}

// Meter returns a named meter from the underlying provider.
func (mp *MetricsProvider) Meter(name string) metric.Meter {
	return mp.provider.Meter(name)
}

// PrometheusHandler wraps a prometheus.Registry for local scraping, a
// fallback to the push-based OTLP exporter for deployments without a
// collector in front of mpsim-worker.
type PrometheusHandler struct {
	registry *prometheus.Registry
}

// NewPrometheusHandler creates a handler backed by a fresh registry.
func NewPrometheusHandler() *PrometheusHandler {
	return &PrometheusHandler{registry: prometheus.NewRegistry()}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (h *PrometheusHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying Prometheus registry so callers can
// register additional collectors.
func (h *PrometheusHandler) Registry() *prometheus.Registry {
	return h.registry
}

// RegisterCollector registers a Prometheus collector.
func (h *PrometheusHandler) RegisterCollector(collector prometheus.Collector) error {
	return h.registry.Register(collector)
}
