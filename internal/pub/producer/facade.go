package producer

import (
	"context"

	"hubpub/internal/pub"
)

// PublishPlain sends payload without partition affinity; the broker picks the partition.
func PublishPlain(ctx context.Context, h pub.Producer, payload []byte) (pub.Receipt, error) {
	return h.Publish(ctx, payload, pub.Plain())
}

// PublishWithPartitionKey sends payload to the partition the broker derives from key.
// An empty key fails with pub.ErrInvalidArgument before anything is sent.
func PublishWithPartitionKey(ctx context.Context, h pub.Producer, payload []byte, key string) (pub.Receipt, error) {
	return h.Publish(ctx, payload, pub.ByPartitionKey(key))
}

// PublishWithPartitionID sends payload to an explicit partition. Unknown partitions are
// reported by the broker at send time.
func PublishWithPartitionID(ctx context.Context, h pub.Producer, payload []byte, id int32) (pub.Receipt, error) {
	return h.Publish(ctx, payload, pub.ByPartitionID(id))
}

// PublishWithProperties sends payload with properties attached as metadata.
func PublishWithProperties(ctx context.Context, h pub.Producer, payload []byte, properties map[string]string) (pub.Receipt, error) {
	return h.Publish(ctx, payload, pub.WithProperties(properties))
}

// Dispatch selects the publish variant by its legacy integer code, see pub.RouteFromCode.
func Dispatch(ctx context.Context, h pub.Producer, code int, payload []byte, arg any) (pub.Receipt, error) {
	route, err := pub.RouteFromCode(code, arg)
	if err != nil {
		return pub.Receipt{}, err
	}

	return h.Publish(ctx, payload, route)
}

// PublishPlainAsync is the non-blocking form of PublishPlain.
func PublishPlainAsync(ctx context.Context, h pub.AsyncProducer, payload []byte) <-chan pub.Result {
	return h.Publish(ctx, payload, pub.Plain())
}

// PublishWithPartitionKeyAsync is the non-blocking form of PublishWithPartitionKey.
func PublishWithPartitionKeyAsync(ctx context.Context, h pub.AsyncProducer, payload []byte, key string) <-chan pub.Result {
	return h.Publish(ctx, payload, pub.ByPartitionKey(key))
}

// PublishWithPartitionIDAsync is the non-blocking form of PublishWithPartitionID.
func PublishWithPartitionIDAsync(ctx context.Context, h pub.AsyncProducer, payload []byte, id int32) <-chan pub.Result {
	return h.Publish(ctx, payload, pub.ByPartitionID(id))
}

// PublishWithPropertiesAsync is the non-blocking form of PublishWithProperties.
func PublishWithPropertiesAsync(ctx context.Context, h pub.AsyncProducer, payload []byte, properties map[string]string) <-chan pub.Result {
	return h.Publish(ctx, payload, pub.WithProperties(properties))
}

// DispatchAsync is the non-blocking form of Dispatch.
func DispatchAsync(ctx context.Context, h pub.AsyncProducer, code int, payload []byte, arg any) <-chan pub.Result {
	route, err := pub.RouteFromCode(code, arg)
	if err != nil {
		return resolved(pub.Result{Err: err})
	}

	return h.Publish(ctx, payload, route)
}

func resolved(r pub.Result) <-chan pub.Result {
	out := make(chan pub.Result, 1)
	out <- r
	close(out)
	return out
}
