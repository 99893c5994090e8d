// Package observability wires OpenTelemetry tracing and metrics for the proxy.
// Traces are exported over OTLP gRPC when an endpoint is configured and
// metrics are exposed through a Prometheus registry owned by Telemetry.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	registry       *promclient.Registry
	logger         *zap.Logger

	// Metrics
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	ErrorCounter     metric.Int64Counter
	UpstreamDuration metric.Float64Histogram
	CacheHitCounter  metric.Int64Counter
	CacheMissCounter metric.Int64Counter
}

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is the collector address; empty keeps spans in process.
	OTLPEndpoint string
	SampleRate   float64
}

func InitTelemetry(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := initTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}

	registry := promclient.NewRegistry()

	meterProvider, err := initMeterProvider(res, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := meterProvider.Meter(cfg.ServiceName)

	t := &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(cfg.ServiceName),
		Meter:          meter,
		registry:       registry,
		logger:         logger,
	}

	if err := t.initInstruments(); err != nil {
		return nil, err
	}

	logger.Info("telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.Bool("otlp_export", cfg.OTLPEndpoint != ""))

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	if t.RequestCounter, err = t.Meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return err
	}

	if t.RequestDuration, err = t.Meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if t.ErrorCounter, err = t.Meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	); err != nil {
		return err
	}

	if t.UpstreamDuration, err = t.Meter.Float64Histogram(
		"cwa_upstream_duration_seconds",
		metric.WithDescription("CWA forecast API call duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if t.CacheHitCounter, err = t.Meter.Int64Counter(
		"forecast_cache_hits_total",
		metric.WithDescription("Total number of forecast cache hits"),
	); err != nil {
		return err
	}

	t.CacheMissCounter, err = t.Meter.Int64Counter(
		"forecast_cache_misses_total",
		metric.WithDescription("Total number of forecast cache misses"),
	)

	return err
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptrace.New(
			ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func initMeterProvider(res *resource.Resource, registry *promclient.Registry) (*sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return mp, nil
}

// Handler serves the Prometheus exposition of this Telemetry's metrics.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) RecordRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	t.RequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.RequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if statusCode >= 400 {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordUpstreamCall records one CWA request for the given location name.
func (t *Telemetry) RecordUpstreamCall(ctx context.Context, city string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("city", city),
		attribute.Bool("error", err != nil),
	}

	t.UpstreamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "upstream"),
			attribute.String("city", city),
		))
	}
}

func (t *Telemetry) RecordCacheHit(ctx context.Context, key string) {
	t.CacheHitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
	))
}

func (t *Telemetry) RecordCacheMiss(ctx context.Context, key string) {
	t.CacheMissCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
	))
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
