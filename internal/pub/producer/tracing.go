package producer

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hubpub/internal/pub"
	"hubpub/internal/pub/tracing"
)

// TracedProducer wraps a pub.Producer with distributed tracing
// Layer order: TracedProducer -> MetricsProducer -> JournaledProducer -> Producer
type TracedProducer struct {
	producer pub.Producer
	tracer   *tracing.Tracer
	hub      string
}

// NewTracedProducer creates a new traced producer that wraps a metrics producer
func NewTracedProducer(producer pub.Producer, tracer *tracing.Tracer, hub string) pub.Producer {
	return &TracedProducer{
		producer: producer,
		tracer:   tracer,
		hub:      hub,
	}
}

// Publish implements pub.Producer.Publish with distributed tracing
func (p *TracedProducer) Publish(ctx context.Context, payload []byte, route pub.Route) (pub.Receipt, error) {
	ctx, span := p.tracer.StartSpan(ctx, "producer.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(p.tracer.PublishAttributes(p.hub, route, len(payload))...)

	receipt, err := p.producer.Publish(ctx, payload, route)

	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		span.SetAttributes(p.tracer.ReceiptAttributes(receipt)...)
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(p.tracer.ErrorAttributes(err)...)

	return receipt, err
}

// Properties implements pub.Producer.Properties with distributed tracing
func (p *TracedProducer) Properties(ctx context.Context) (pub.HubProperties, error) {
	ctx, span := p.tracer.StartSpan(ctx, "producer.properties")
	defer span.End()

	props, err := p.producer.Properties(ctx)
	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return props, err
}

// Close implements pub.Producer.Close
func (p *TracedProducer) Close(ctx context.Context) error {
	return p.producer.Close(ctx)
}
