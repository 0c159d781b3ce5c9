package producer

import (
	"context"
	"errors"
	"time"

	"hubpub/internal/pub"
	"hubpub/internal/pub/metrics"
)

// MetricsProducer wraps a pub.Producer with metrics collection
type MetricsProducer struct {
	producer pub.Producer
	registry *metrics.Registry
	hub      string
}

// NewMetricsProducer creates a new instrumented producer
func NewMetricsProducer(producer pub.Producer, registry *metrics.Registry, hub string) pub.Producer {
	return &MetricsProducer{
		producer: producer,
		registry: registry,
		hub:      hub,
	}
}

// Publish implements pub.Producer.Publish with metrics collection
func (p *MetricsProducer) Publish(ctx context.Context, payload []byte, route pub.Route) (pub.Receipt, error) {
	start := time.Now()

	receipt, err := p.producer.Publish(ctx, payload, route)
	duration := time.Since(start)

	p.registry.RecordPublish(p.hub, route.Kind().String(), publishStatus(err), len(payload), duration)

	return receipt, err
}

// Properties implements pub.Producer.Properties
func (p *MetricsProducer) Properties(ctx context.Context) (pub.HubProperties, error) {
	return p.producer.Properties(ctx)
}

// Close implements pub.Producer.Close
func (p *MetricsProducer) Close(ctx context.Context) error {
	return p.producer.Close(ctx)
}

func publishStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, pub.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, pub.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}
