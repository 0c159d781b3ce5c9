package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"hubpub/internal/pub"
)

// Config holds configuration parameters for OpenTelemetry tracing setup.
// This includes service identification, collector endpoint, sampling configuration,
// and batch processing settings for trace delivery.
type Config struct {
	ServiceName    string        `env:"TRACING_SERVICE_NAME" envDefault:"hubpub"`
	ServiceVersion string        `env:"TRACING_SERVICE_VERSION" envDefault:"1.0.0"`
	Endpoint       string        `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate     float64       `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"TRACING_BATCH_TIMEOUT" envDefault:"1s"`
	ExportTimeout  time.Duration `env:"TRACING_EXPORT_TIMEOUT" envDefault:"30s"`
	MaxExportBatch int           `env:"TRACING_MAX_EXPORT_BATCH" envDefault:"512"`
	MaxQueueSize   int           `env:"TRACING_MAX_QUEUE_SIZE" envDefault:"2048"`
}

// Tracer wraps the OpenTelemetry tracer with convenience methods for publish operations.
type Tracer struct {
	tracer trace.Tracer
	system string
}

// NewTracer creates and configures a new OpenTelemetry tracer with OTLP HTTP export.
// It installs the tracer provider and propagators globally and returns a cleanup
// function that flushes pending spans.
func NewTracer(config Config, system string) (*Tracer, func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(config.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	processor := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(config.BatchTimeout),
		sdktrace.WithExportTimeout(config.ExportTimeout),
		sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
		sdktrace.WithMaxQueueSize(config.MaxQueueSize),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cleanup := func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
		return tp.Shutdown(ctx)
	}

	return NewTracerFromProvider(tp, config.ServiceName, system), cleanup, nil
}

// NewTracerFromProvider builds a Tracer on an existing provider. system names the
// messaging transport, e.g. "eventhubs" or "kafka".
func NewTracerFromProvider(tp trace.TracerProvider, name, system string) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		system: system,
	}
}

// StartSpan creates a new span with the specified name and options.
func (t *Tracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// RecordError records an error event on the active span and sets the span status to error.
func (t *Tracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// PublishAttributes creates the messaging attributes for a publish span.
func (t *Tracer) PublishAttributes(hub string, route pub.Route, payloadBytes int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", t.system),
		attribute.String("messaging.operation", "publish"),
		attribute.String("messaging.destination.name", hub),
		attribute.Int("messaging.message.body.size", payloadBytes),
		attribute.String("hubpub.route", route.Kind().String()),
	}

	switch route.Kind() {
	case pub.RoutePartitionKey:
		attrs = append(attrs, attribute.String("hubpub.partition_key", route.PartitionKey()))
	case pub.RoutePartitionID:
		attrs = append(attrs, attribute.Int("messaging.destination.partition.id", int(route.PartitionID())))
	case pub.RouteProperties:
		attrs = append(attrs, attribute.Int("hubpub.properties", len(route.Properties())))
	}

	return attrs
}

// ReceiptAttributes describes an accepted send.
func (t *Tracer) ReceiptAttributes(r pub.Receipt) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("messaging.message.id", r.MessageID),
	}
}

// ErrorAttributes creates attributes based on error state.
func (t *Tracer) ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{
			attribute.Bool("error", false),
		}
	}
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	}
}
