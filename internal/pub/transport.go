package pub

import "context"

// Transport is the broker client a Producer sends batches through.
type Transport interface {
	// Send transmits a sealed batch. Failures should be returned as *TransportError.
	Send(ctx context.Context, batch *Batch) error

	// Properties returns the hub metadata.
	Properties(ctx context.Context) (HubProperties, error)

	// Close releases network resources held by the transport.
	Close(ctx context.Context) error
}
