package producer

import (
	"context"

	"go.uber.org/zap"

	"hubpub/internal/pub"
	"hubpub/internal/pub/metrics"
)

// JournaledProducer records a receipt for every accepted send. Journal failures
// are logged and counted but never fail the publish, since the broker already
// accepted the event.
type JournaledProducer struct {
	producer pub.Producer
	journal  pub.ReceiptJournal
	registry *metrics.Registry
	hub      string
	logger   *zap.Logger
}

func NewJournaledProducer(producer pub.Producer, journal pub.ReceiptJournal, registry *metrics.Registry, hub string, logger *zap.Logger) pub.Producer {
	return &JournaledProducer{
		producer: producer,
		journal:  journal,
		registry: registry,
		hub:      hub,
		logger:   logger.Named("journal"),
	}
}

// Publish implements pub.Producer.Publish and records the receipt on success
func (p *JournaledProducer) Publish(ctx context.Context, payload []byte, route pub.Route) (pub.Receipt, error) {
	receipt, err := p.producer.Publish(ctx, payload, route)
	if err != nil {
		return receipt, err
	}

	jerr := p.journal.Record(ctx, receipt)
	p.registry.RecordJournal(p.hub, jerr)
	if jerr != nil {
		p.logger.Warn("failed to record receipt",
			zap.String("messageId", receipt.MessageID),
			zap.Error(jerr),
		)
	}

	return receipt, nil
}

func (p *JournaledProducer) Properties(ctx context.Context) (pub.HubProperties, error) {
	return p.producer.Properties(ctx)
}

func (p *JournaledProducer) Close(ctx context.Context) error {
	return p.producer.Close(ctx)
}
