// Package eventhubs sends batches over AMQP with the Azure Event Hubs producer client.
package eventhubs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"go.uber.org/zap"

	"hubpub/internal/credentials"
	"hubpub/internal/pub"
	"hubpub/internal/validator"
)

// EventBatch is the subset of *azeventhubs.EventDataBatch used by the transport.
type EventBatch interface {
	AddEventData(ed *azeventhubs.EventData, options *azeventhubs.AddEventDataOptions) error
	NumEvents() int32
	NumBytes() uint64
}

var _ EventBatch = (*azeventhubs.EventDataBatch)(nil)

// Client is the producer client surface used by the transport.
type Client interface {
	NewBatch(ctx context.Context, options *azeventhubs.EventDataBatchOptions) (EventBatch, error)
	SendBatch(ctx context.Context, batch EventBatch) error
	GetEventHubProperties(ctx context.Context, options *azeventhubs.GetEventHubPropertiesOptions) (azeventhubs.EventHubProperties, error)
	Close(ctx context.Context) error
}

// producerClient adapts *azeventhubs.ProducerClient to Client.
type producerClient struct {
	*azeventhubs.ProducerClient
}

var _ Client = producerClient{}

func (c producerClient) NewBatch(ctx context.Context, options *azeventhubs.EventDataBatchOptions) (EventBatch, error) {
	b, err := c.NewEventDataBatch(ctx, options)
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (c producerClient) SendBatch(ctx context.Context, batch EventBatch) error {
	edb, ok := batch.(*azeventhubs.EventDataBatch)
	if !ok {
		return fmt.Errorf("unexpected batch type %T", batch)
	}

	return c.SendEventDataBatch(ctx, edb, nil)
}

// Config holds the AMQP transport settings.
type Config struct {
	// ApplicationID is sent to the service as the user agent suffix.
	ApplicationID string `env:"EVENTHUBS_APPLICATION_ID" envDefault:"hubpub"`
	// MaxBatchBytes caps the batch size; zero uses the link maximum.
	MaxBatchBytes uint64 `env:"EVENTHUBS_MAX_BATCH_BYTES" envDefault:"0"`
}

// Transport implements pub.Transport on an Event Hubs producer client.
type Transport struct {
	client Client
	hub    string
	config Config
	logger *zap.Logger
}

// New connects a producer client using the connection string and hub name.
// The SDK rejects a hub name when the connection string already carries an EntityPath.
func New(connectionString, hub string, config Config, logger *zap.Logger) (*Transport, error) {
	entity := hub
	if cs, err := credentials.ParseConnectionString(connectionString); err == nil && cs.EntityPath != "" {
		if cs.EntityPath != hub {
			return nil, fmt.Errorf("connection string is scoped to hub %q, not %q", cs.EntityPath, hub)
		}
		entity = ""
	}

	client, err := azeventhubs.NewProducerClientFromConnectionString(connectionString, entity, &azeventhubs.ProducerClientOptions{
		ApplicationID: config.ApplicationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event hubs producer client: %w", err)
	}

	return NewWithClient(producerClient{client}, hub, config, logger)
}

// NewWithClient builds a transport on an existing client.
func NewWithClient(client Client, hub string, config Config, logger *zap.Logger) (*Transport, error) {
	t := Transport{
		client: client,
		hub:    hub,
		config: config,
		logger: logger,
	}

	if err := validator.Validate("eventhubs transport", t.client, t.hub, t.logger); err != nil {
		return nil, fmt.Errorf("failed to validate eventhubs transport deps: %w", err)
	}
	t.logger = logger.Named("eventhubs").With(zap.String("hub", hub))

	return &t, nil
}

// Send implements pub.Transport.Send: create a batch with the affinity, add every
// event, send it.
func (t *Transport) Send(ctx context.Context, batch *pub.Batch) error {
	edb, err := t.client.NewBatch(ctx, batchOptions(batch, t.config.MaxBatchBytes))
	if err != nil {
		return pub.NewTransportError("create_batch", err)
	}
	if edb == nil {
		return pub.NewTransportError("create_batch", errors.New("client returned no batch"))
	}

	for _, e := range batch.Events() {
		if err := edb.AddEventData(toEventData(e), nil); err != nil {
			if errors.Is(err, azeventhubs.ErrEventDataTooLarge) {
				return pub.NewTransportError("add_event", fmt.Errorf("event %s of %d bytes exceeds the batch limit: %w", e.ID, e.Size(), err))
			}
			return pub.NewTransportError("add_event", err)
		}
	}

	if err := t.client.SendBatch(ctx, edb); err != nil {
		return pub.NewTransportError("send_batch", err)
	}

	t.logger.Debug("batch sent", zap.Int32("events", edb.NumEvents()), zap.Uint64("bytes", edb.NumBytes()))
	return nil
}

// Properties implements pub.Transport.Properties.
func (t *Transport) Properties(ctx context.Context) (pub.HubProperties, error) {
	props, err := t.client.GetEventHubProperties(ctx, nil)
	if err != nil {
		return pub.HubProperties{}, pub.NewTransportError("properties", err)
	}

	return pub.HubProperties{
		Name:         props.Name,
		CreatedOn:    props.CreatedOn,
		PartitionIDs: props.PartitionIDs,
	}, nil
}

// Close implements pub.Transport.Close.
func (t *Transport) Close(ctx context.Context) error {
	if err := t.client.Close(ctx); err != nil {
		return pub.NewTransportError("close", err)
	}

	t.logger.Info("event hubs client closed")
	return nil
}

func batchOptions(batch *pub.Batch, maxBytes uint64) *azeventhubs.EventDataBatchOptions {
	opts := azeventhubs.EventDataBatchOptions{MaxBytes: maxBytes}
	if key, ok := batch.PartitionKey(); ok {
		opts.PartitionKey = &key
	}
	if id, ok := batch.PartitionID(); ok {
		pid := strconv.FormatInt(int64(id), 10)
		opts.PartitionID = &pid
	}

	return &opts
}

func toEventData(e pub.Event) *azeventhubs.EventData {
	id := e.ID
	ed := azeventhubs.EventData{
		Body:      e.Payload,
		MessageID: &id,
	}

	if len(e.Properties) > 0 {
		ed.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			ed.Properties[k] = v
		}
	}

	return &ed
}
