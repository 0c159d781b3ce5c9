package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hubpub/internal/pub"
	"hubpub/internal/validator"
)

// Config holds the settings of a blocking Producer.
type Config struct {
	// Hub is the event hub name the transport publishes to.
	Hub string
	// Name identifies this producer on receipts. Defaults to Hub.
	Name string
	// PublishTimeout bounds a publish when the caller's context has no deadline.
	// Zero disables it.
	PublishTimeout time.Duration
}

// Producer is the blocking publisher. Each Publish builds one single-event batch
// and sends it through the transport before returning.
type Producer struct {
	transport pub.Transport
	hub       string
	name      string
	timeout   time.Duration
	logger    *zap.Logger

	// held for reading by sends so Close can wait for them
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// closeTimeout bounds the transport release once the caller's context has expired.
const closeTimeout = 5 * time.Second

func NewProducer(transport pub.Transport, cfg Config, logger *zap.Logger) (*Producer, error) {
	p := Producer{
		transport: transport,
		hub:       cfg.Hub,
		name:      cfg.Name,
		timeout:   cfg.PublishTimeout,
		logger:    logger,
	}

	if err := validator.Validate("producer", p.transport, p.hub, p.logger); err != nil {
		return nil, fmt.Errorf("failed to validate producer deps: %w", err)
	}
	if p.name == "" {
		p.name = p.hub
	}
	p.logger = logger.Named("producer").With(zap.String("hub", p.hub))

	return &p, nil
}

// Publish implements pub.Producer.Publish.
func (p *Producer) Publish(ctx context.Context, payload []byte, route pub.Route) (pub.Receipt, error) {
	batch, event, err := buildBatch(payload, route)
	if err != nil {
		return pub.Receipt{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return pub.Receipt{}, pub.NewTransportError("send", pub.ErrClosed)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := batch.MarkSent(); err != nil {
		return pub.Receipt{}, fmt.Errorf("failed to seal batch: %w", err)
	}

	if err := p.transport.Send(ctx, batch); err != nil {
		p.logger.Debug("send failed",
			zap.String("route", route.Kind().String()),
			zap.String("messageId", event.ID),
			zap.Error(err),
		)
		return pub.Receipt{}, pub.NewTransportError("send", err)
	}

	return p.receipt(batch, event, route), nil
}

// Properties implements pub.Producer.Properties.
func (p *Producer) Properties(ctx context.Context) (pub.HubProperties, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return pub.HubProperties{}, pub.NewTransportError("properties", pub.ErrClosed)
	}

	props, err := p.transport.Properties(ctx)
	if err != nil {
		return pub.HubProperties{}, pub.NewTransportError("properties", err)
	}

	return props, nil
}

// Close implements pub.Producer.Close. It waits for in-flight sends until ctx is done;
// the transport is released either way and later publishes fail with ErrClosed.
// It is safe to call more than once.
func (p *Producer) Close(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(drained)
	}()

	select {
	case <-drained:
		return p.release(ctx)
	case <-ctx.Done():
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()

		select {
		case <-drained:
			return p.release(releaseCtx)
		default:
		}

		p.logger.Warn("releasing transport with sends still in flight", zap.Error(ctx.Err()))
		return errors.Join(
			fmt.Errorf("failed to wait for in-flight sends: %w", ctx.Err()),
			p.release(releaseCtx),
		)
	}
}

func (p *Producer) release(ctx context.Context) error {
	p.closeOnce.Do(func() {
		if err := p.transport.Close(ctx); err != nil {
			p.closeErr = pub.NewTransportError("close", err)
			return
		}
		p.logger.Info("producer closed")
	})

	return p.closeErr
}

// buildBatch creates a fresh batch holding exactly one event for the route.
func buildBatch(payload []byte, route pub.Route) (*pub.Batch, pub.Event, error) {
	if err := route.Validate(); err != nil {
		return nil, pub.Event{}, err
	}

	var props map[string]string
	if route.Kind() == pub.RouteProperties {
		props = route.Properties()
	}

	event, err := pub.NewEvent(payload, props)
	if err != nil {
		return nil, pub.Event{}, err
	}

	batch, err := pub.NewBatch(route.BatchOptions())
	if err != nil {
		return nil, pub.Event{}, err
	}

	if err := batch.Add(event); err != nil {
		return nil, pub.Event{}, fmt.Errorf("failed to add event to batch: %w", err)
	}

	return batch, event, nil
}

func (p *Producer) receipt(batch *pub.Batch, event pub.Event, route pub.Route) pub.Receipt {
	r := pub.Receipt{
		ID:        pub.ReceiptKey(p.hub, event.ID),
		MessageID: event.ID,
		Hub:       p.hub,
		Producer:  p.name,
		Route:     route.Kind().String(),
		Bytes:     batch.Bytes(),
		SentAt:    ptr(time.Now().UTC()),
	}
	if key, ok := batch.PartitionKey(); ok {
		r.PartitionKey = key
	}
	if id, ok := batch.PartitionID(); ok {
		r.PartitionID = ptr(id)
	}

	return r
}

func (p *Producer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, p.timeout)
}

func ptr[T any](v T) *T {
	return &v
}
