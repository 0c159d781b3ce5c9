package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"hubpub/internal/pub"
	"hubpub/internal/pub/metrics"
	"hubpub/internal/validator"
)

// AsyncConfig holds the settings of an AsyncProducer.
type AsyncConfig struct {
	MaxInFlight int `env:"MAX_IN_FLIGHT" envDefault:"64"`
}

// AsyncProducer is the non-blocking publisher. Each Publish runs on its own goroutine,
// bounded by MaxInFlight. Delivery order across concurrent calls is not guaranteed.
type AsyncProducer struct {
	producer pub.Producer
	hub      string
	sem      *semaphore.Weighted
	registry *metrics.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

func NewAsyncProducer(producer pub.Producer, hub string, cfg AsyncConfig, registry *metrics.Registry, logger *zap.Logger) (*AsyncProducer, error) {
	a := AsyncProducer{
		producer: producer,
		hub:      hub,
		registry: registry,
		logger:   logger,
	}

	if err := validator.Validate("async producer", a.producer, a.hub, a.registry, a.logger, cfg.MaxInFlight); err != nil {
		return nil, fmt.Errorf("failed to validate async producer deps: %w", err)
	}
	a.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	a.logger = logger.Named("async-producer").With(zap.String("hub", hub))

	return &a, nil
}

// Publish implements pub.AsyncProducer.Publish. Invalid routes and closed producers
// resolve immediately without starting a send.
func (a *AsyncProducer) Publish(ctx context.Context, payload []byte, route pub.Route) <-chan pub.Result {
	if err := route.Validate(); err != nil {
		return resolved(pub.Result{Err: err})
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return resolved(pub.Result{Err: pub.NewTransportError("send", pub.ErrClosed)})
	}
	a.inFlight.Add(1)
	a.mu.Unlock()

	// the caller may reuse its buffer once Publish returns
	if payload != nil {
		payload = append([]byte{}, payload...)
	}

	out := make(chan pub.Result, 1)
	a.registry.AddInFlight(a.hub, 1)

	go func() {
		defer a.inFlight.Done()
		defer a.registry.AddInFlight(a.hub, -1)
		defer close(out)

		if err := a.sem.Acquire(ctx, 1); err != nil {
			out <- pub.Result{Err: fmt.Errorf("failed to acquire send slot: %w", err)}
			return
		}
		defer a.sem.Release(1)

		receipt, err := a.producer.Publish(ctx, payload, route)
		out <- pub.Result{Receipt: receipt, Err: err}
	}()

	return out
}

// Properties implements pub.AsyncProducer.Properties.
func (a *AsyncProducer) Properties(ctx context.Context) (pub.HubProperties, error) {
	return a.producer.Properties(ctx)
}

// Close implements pub.AsyncProducer.Close. The wrapped producer is closed even when
// ctx ends before in-flight publishes drain.
func (a *AsyncProducer) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		a.inFlight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return a.producer.Close(ctx)
	case <-ctx.Done():
		a.logger.Warn("closing with publishes still in flight", zap.Error(ctx.Err()))
		return errors.Join(
			fmt.Errorf("failed to drain in-flight publishes: %w", ctx.Err()),
			a.producer.Close(ctx),
		)
	}
}
