// Package instrumentation provides the OpenTelemetry-backed metrics and
// tracing surface: the requests_total{provider,status} counter spec.md
// §4.1 names, circuit breaker state-change metrics, and a tracer for
// spans, built on resource/meter/tracer construction with an
// OTLP-over-HTTP metric exporter and a stdout trace exporter - a few
// counters and one state gauge, not a full cardinality-guarding,
// async-span, framework-wide registry.
package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/gomind/core"
)

// OTelProvider implements core.Telemetry, providers.MetricsRecorder, and
// resilience.MetricsCollector, so one instance wires metrics through every
// layer of the pipeline.
type OTelProvider struct {
	meter  metric.Meter
	tracer trace.Tracer

	requestsTotal     metric.Int64Counter
	breakerStateGauge metric.Int64UpDownCounter
	breakerRejections metric.Int64Counter
	logEvents         metric.Int64Counter
}

// Config selects the metric exporter. When OTLPEndpoint is set, metrics are
// exported over OTLP/HTTP; when it is empty, metrics are recorded but not
// exported. Traces always go to the stdout exporter.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
}

// New constructs an OTelProvider. Exporter/provider setup errors are
// returned rather than panicking, since telemetry must never be allowed to
// block application startup.
func New(ctx context.Context, cfg Config) (*OTelProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	var meterProvider *sdkmetric.MeterProvider
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("building otlp metric exporter: %w", err)
		}
		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		)
	} else {
		meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	}
	otel.SetMeterProvider(meterProvider)

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("building stdout trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	meter := meterProvider.Meter(cfg.ServiceName)
	tracer := tracerProvider.Tracer(cfg.ServiceName)

	requestsTotal, err := meter.Int64Counter("requests_total", metric.WithDescription("Provider HTTP requests by status"))
	if err != nil {
		return nil, err
	}
	breakerStateGauge, err := meter.Int64UpDownCounter("circuit_breaker_state", metric.WithDescription("Current circuit breaker state per provider (0=closed,1=half_open,2=open)"))
	if err != nil {
		return nil, err
	}
	breakerRejections, err := meter.Int64Counter("circuit_breaker_rejections_total", metric.WithDescription("Requests rejected by an open circuit breaker"))
	if err != nil {
		return nil, err
	}
	logEvents, err := meter.Int64Counter("log_events_total", metric.WithDescription("Log lines emitted by level/component"))
	if err != nil {
		return nil, err
	}

	return &OTelProvider{
		meter:             meter,
		tracer:            tracer,
		requestsTotal:     requestsTotal,
		breakerStateGauge: breakerStateGauge,
		breakerRejections: breakerRejections,
		logEvents:         logEvents,
	}, nil
}

// RecordRequest implements providers.MetricsRecorder.
func (o *OTelProvider) RecordRequest(provider, status string) {
	o.requestsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordSuccess/RecordFailure/RecordStateChange/RecordRejection implement
// resilience.MetricsCollector.
func (o *OTelProvider) RecordSuccess(name string) {}

func (o *OTelProvider) RecordFailure(name string, errorType string) {}

func (o *OTelProvider) RecordStateChange(name string, from, to string) {
	delta := stateDelta(from, to)
	if delta != 0 {
		o.breakerStateGauge.Add(context.Background(), delta, metric.WithAttributes(attribute.String("provider", name)))
	}
}

func (o *OTelProvider) RecordRejection(name string) {
	o.breakerRejections.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider", name)))
}

// RecordLogEvent implements core.MetricsRecorder for ProductionLogger.
func (o *OTelProvider) RecordLogEvent(level, component string) {
	o.logEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("level", level),
		attribute.String("component", component),
	))
}

// StartSpan / RecordMetric implement core.Telemetry.
func (o *OTelProvider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := o.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func (o *OTelProvider) RecordMetric(name string, value float64, labels map[string]string) {
	// Ad-hoc metrics beyond the named counters above are rare in this
	// service; routed through the same meter for completeness.
	counter, err := o.meter.Float64Counter(name)
	if err != nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func stateDelta(from, to string) int64 {
	rank := func(s string) int64 {
		switch s {
		case "CLOSED":
			return 0
		case "HALF_OPEN":
			return 1
		case "OPEN":
			return 2
		}
		return 0
	}
	return rank(to) - rank(from)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
