// Package kafka sends batches to the Event Hubs Kafka endpoint with sarama.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/dnwe/otelsarama"
	"go.uber.org/zap"

	"hubpub/internal/pub"
	"hubpub/internal/validator"
)

// Metadata is the subset of sarama.Client used for properties introspection.
type Metadata interface {
	Partitions(topic string) ([]int32, error)
	Close() error
}

// Transport implements pub.Transport over a sarama SyncProducer.
// The event hub name is used as the Kafka topic.
type Transport struct {
	producer sarama.SyncProducer
	metadata Metadata
	topic    string
	logger   *zap.Logger
}

// New connects to the hub's Kafka endpoint authenticating with the connection string.
func New(connectionString, hub string, config Config, logger *zap.Logger) (*Transport, error) {
	config.applyDefaults()

	brokers, err := config.brokers(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kafka brokers: %w", err)
	}

	sc, err := buildSaramaConfig(config, connectionString)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka transport: new client: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka transport: new producer: %w", err)
	}

	logger.Info("kafka transport ready", zap.Strings("brokers", brokers), zap.String("topic", hub))

	return NewWithProducer(otelsarama.WrapSyncProducer(sc, producer), client, hub, logger)
}

// NewWithProducer builds a transport on an existing producer and metadata client.
func NewWithProducer(producer sarama.SyncProducer, metadata Metadata, topic string, logger *zap.Logger) (*Transport, error) {
	t := Transport{
		producer: producer,
		metadata: metadata,
		topic:    topic,
		logger:   logger,
	}

	if err := validator.Validate("kafka transport", t.producer, t.metadata, t.topic, t.logger); err != nil {
		return nil, fmt.Errorf("failed to validate kafka transport deps: %w", err)
	}
	t.logger = logger.Named("kafka").With(zap.String("topic", topic))

	return &t, nil
}

// Send implements pub.Transport.Send. All events of the batch go out in one produce call.
func (t *Transport) Send(ctx context.Context, batch *pub.Batch) error {
	if err := ctx.Err(); err != nil {
		return pub.NewTransportError("send_batch", err)
	}

	msgs := t.messages(batch)
	if len(msgs) == 0 {
		return nil
	}

	// sarama's sync producer has no context; the deadline is enforced by Producer.Timeout
	if err := t.producer.SendMessages(msgs); err != nil {
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) && len(perrs) > 0 {
			return pub.NewTransportError("send_batch", fmt.Errorf("%d of %d messages rejected: %w", len(perrs), len(msgs), perrs[0].Err))
		}
		return pub.NewTransportError("send_batch", err)
	}

	t.logger.Debug("batch sent", zap.Int("events", len(msgs)), zap.Int32("partition", msgs[0].Partition))
	return nil
}

// Properties implements pub.Transport.Properties. Kafka exposes no creation time.
func (t *Transport) Properties(ctx context.Context) (pub.HubProperties, error) {
	partitions, err := t.metadata.Partitions(t.topic)
	if err != nil {
		return pub.HubProperties{}, pub.NewTransportError("properties", err)
	}

	ids := make([]string, 0, len(partitions))
	for _, p := range partitions {
		ids = append(ids, strconv.FormatInt(int64(p), 10))
	}

	return pub.HubProperties{Name: t.topic, PartitionIDs: ids}, nil
}

// Close implements pub.Transport.Close.
func (t *Transport) Close(ctx context.Context) error {
	if err := t.producer.Close(); err != nil {
		t.logger.Error("producer close failed", zap.Error(err))
		return pub.NewTransportError("close", err)
	}
	if err := t.metadata.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
		t.logger.Error("client close failed", zap.Error(err))
		return pub.NewTransportError("close", err)
	}

	t.logger.Info("kafka transport closed")
	return nil
}

func (t *Transport) messages(batch *pub.Batch) []*sarama.ProducerMessage {
	key, hasKey := batch.PartitionKey()
	id, hasID := batch.PartitionID()

	events := batch.Events()
	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, e := range events {
		m := &sarama.ProducerMessage{
			Topic:    t.topic,
			Value:    sarama.ByteEncoder(e.Payload),
			Headers:  headers(e),
			Metadata: affinity{partitionID: id, explicit: hasID},
		}
		if hasKey {
			m.Key = sarama.StringEncoder(key)
		}
		msgs = append(msgs, m)
	}

	return msgs
}

func headers(e pub.Event) []sarama.RecordHeader {
	h := make([]sarama.RecordHeader, 0, len(e.Properties)+1)
	h = append(h, sarama.RecordHeader{Key: []byte("message-id"), Value: []byte(e.ID)})
	for k, v := range e.Properties {
		h = append(h, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	return h
}
