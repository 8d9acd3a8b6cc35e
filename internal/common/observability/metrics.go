package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability records per-event handling telemetry through OpenTelemetry and
// exposes it on the Prometheus registry.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	eventCounter  otelmetric.Int64Counter
	eventDuration otelmetric.Float64Histogram
}

// New wires an OTel meter provider to a Prometheus exporter registered on reg.
// A nil reg uses the default registerer. When spans is non-nil a tracer
// provider exporting to it is installed globally; otherwise spans are no-ops.
// Exporter failures degrade to no-op instruments rather than aborting startup.
func New(serviceName string, reg promclient.Registerer, spans sdktrace.SpanExporter) (*Observability, error) {
	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}

	exporter, err := prometheus.New(opts...)
	if err != nil {
		return NewNoop(serviceName), err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	var tp *sdktrace.TracerProvider
	if spans != nil {
		tp, err = newTracerProvider(serviceName, spans)
		if err != nil {
			_ = provider.Shutdown(context.Background())
			return NewNoop(serviceName), err
		}
		otel.SetTracerProvider(tp)
	}

	tracer := otel.Tracer(serviceName)
	if tp != nil {
		tracer = tp.Tracer(serviceName)
	}

	o := build(provider.Meter(serviceName), tracer)
	o.meterProvider = provider
	o.tracerProvider = tp
	return o, nil
}

func newTracerProvider(serviceName string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

// NewNoop returns instruments that record nothing.
func NewNoop(serviceName string) *Observability {
	return build(noop.NewMeterProvider().Meter(serviceName), otel.Tracer(serviceName))
}

func build(meter otelmetric.Meter, tracer trace.Tracer) *Observability {
	eventCounter, _ := meter.Int64Counter(
		"changefeed.events.handled",
		otelmetric.WithDescription("Number of change events handled by the approval notifier"),
	)
	eventDuration, _ := meter.Float64Histogram(
		"changefeed.events.duration",
		otelmetric.WithDescription("Change event handling duration"),
		otelmetric.WithUnit("ms"),
	)
	return &Observability{
		tracer:        tracer,
		eventCounter:  eventCounter,
		eventDuration: eventDuration,
	}
}

// StartSpan opens a span for one unit of work.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordEventHandled(ctx context.Context, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.eventCounter != nil {
		o.eventCounter.Add(ctx, 1, attrs)
	}
	if o.eventDuration != nil {
		o.eventDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// Shutdown flushes pending spans and stops both providers.
func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
