package pub

import (
	"context"
	"time"
)

// Producer defines the interface for publishing single events to the hub.
// Each call builds and sends exactly one batch holding one event.
type Producer interface {
	// Publish sends payload using the given route and blocks until the broker
	// accepts or rejects it.
	Publish(ctx context.Context, payload []byte, route Route) (Receipt, error)

	// Properties returns the hub metadata reported by the broker.
	Properties(ctx context.Context) (HubProperties, error)

	// Close waits for in-flight sends and releases the transport.
	// Subsequent publishes fail with ErrClosed.
	Close(ctx context.Context) error
}

// Result is the outcome of a non-blocking publish.
type Result struct {
	Receipt Receipt
	Err     error
}

// AsyncProducer defines the non-blocking publishing interface.
type AsyncProducer interface {
	// Publish starts sending payload and returns immediately. The returned channel
	// receives exactly one Result and is then closed.
	Publish(ctx context.Context, payload []byte, route Route) <-chan Result

	// Properties returns the hub metadata reported by the broker.
	Properties(ctx context.Context) (HubProperties, error)

	// Close stops accepting publishes, waits for in-flight ones and closes the
	// underlying producer.
	Close(ctx context.Context) error
}

// HubProperties describes the event hub as reported by the broker.
type HubProperties struct {
	Name         string    `json:"name"`
	CreatedOn    time.Time `json:"createdOn"`
	PartitionIDs []string  `json:"partitionIDs"`
}
