// Package observability wires OpenTelemetry tracing and metrics into the
// converter. All providers are optional; a zero Config is a no-op and adds
// no overhead to conversions.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/nlstn/odata-openapi"

// Option configures observability.
type Option func(*Config)

// WithTracerProvider enables distributed tracing of conversions.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider enables metrics collection.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name reported in telemetry attributes.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the version reported in telemetry attributes.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used for observability diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// Config holds the initialized tracer, meter and instruments.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         *slog.Logger

	tracer      trace.Tracer
	conversions metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
	schemaCount metric.Int64Histogram
}

// NewConfig builds a Config from options. Call Initialize before use.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		serviceName: "odata-openapi",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates the tracer and metric instruments. Missing providers
// fall back to no-op implementations.
func (c *Config) Initialize() error {
	tp := c.tracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	c.tracer = tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion))

	mp := c.meterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(c.serviceVersion))

	var err error
	c.conversions, err = meter.Int64Counter("odata_openapi.conversions",
		metric.WithDescription("Completed metadata conversions"))
	if err != nil {
		return fmt.Errorf("failed to create conversion counter: %w", err)
	}
	c.failures, err = meter.Int64Counter("odata_openapi.conversion_failures",
		metric.WithDescription("Failed metadata conversions"))
	if err != nil {
		return fmt.Errorf("failed to create failure counter: %w", err)
	}
	c.duration, err = meter.Float64Histogram("odata_openapi.conversion_duration",
		metric.WithDescription("Conversion duration"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}
	c.schemaCount, err = meter.Int64Histogram("odata_openapi.schema_count",
		metric.WithDescription("Schemas emitted per conversion"))
	if err != nil {
		return fmt.Errorf("failed to create schema histogram: %w", err)
	}
	return nil
}

// StartConversion opens the span covering one conversion. The returned end
// function records outcome, duration and schema count; call it with the
// final error and the number of emitted schemas.
func (c *Config) StartConversion(ctx context.Context, odataVersion string) (context.Context, func(err error, schemas int)) {
	if c == nil || c.tracer == nil {
		return ctx, func(error, int) {}
	}
	attrs := []attribute.KeyValue{
		attribute.String("odata.version", odataVersion),
		attribute.String("service.name", c.serviceName),
	}
	ctx, span := c.tracer.Start(ctx, "odata_openapi.convert", trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error, schemas int) {
		elapsed := time.Since(start).Seconds()
		set := metric.WithAttributes(attrs...)
		c.duration.Record(ctx, elapsed, set)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.failures.Add(ctx, 1, set)
		} else {
			span.SetAttributes(attribute.Int("odata.schemas", schemas))
			c.conversions.Add(ctx, 1, set)
			c.schemaCount.Record(ctx, int64(schemas), set)
		}
		span.End()
	}
}
