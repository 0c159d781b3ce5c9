// Package setup loads credentials and assembles a ready-to-use publisher:
// transport, blocking producer and its journal, metrics and tracing decorators.
package setup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hubpub/internal/credentials"
	"hubpub/internal/pub"
	"hubpub/internal/pub/metrics"
	"hubpub/internal/pub/producer"
	"hubpub/internal/pub/tracing"
	"hubpub/internal/transport/eventhubs"
	"hubpub/internal/transport/kafka"
	"hubpub/internal/validator"
)

const (
	TransportEventHubs = "eventhubs"
	TransportKafka     = "kafka"
)

// Config selects where credentials come from and which transport carries the events.
type Config struct {
	CredentialsPath       string        `env:"CREDENTIALS_PATH"`
	CredentialsSearchRoot string        `env:"CREDENTIALS_SEARCH_ROOT" envDefault:".."`
	Transport             string        `env:"TRANSPORT" envDefault:"eventhubs"`
	ProducerName          string        `env:"PRODUCER_NAME"`
	PublishTimeout        time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"30s"`

	Async     producer.AsyncConfig
	EventHubs eventhubs.Config
	Kafka     kafka.Config
}

// TransportFactory opens a transport for the loaded credentials.
type TransportFactory func(creds credentials.Credentials, config Config, logger *zap.Logger) (pub.Transport, error)

// Deps are the shared components a publisher is decorated with.
// Journal and NewTransport are optional.
type Deps struct {
	Registry *metrics.Registry
	Tracer   *tracing.Tracer
	Logger   *zap.Logger

	// Journal records receipts of accepted sends when set
	Journal pub.ReceiptJournal
	// NewTransport overrides the transport selected by Config.Transport
	NewTransport TransportFactory
}

// Publisher is an opened publisher. Sync and Async share one transport; close
// only one of them.
type Publisher struct {
	Credentials credentials.Credentials
	Sync        pub.Producer
	Async       *producer.AsyncProducer
}

// Open loads credentials and builds the decorated publisher chain
// Traced -> Metrics -> Journaled -> Producer -> Transport.
// A missing credentials file is returned as credentials.ErrConfigNotFound.
func Open(config Config, deps Deps) (*Publisher, error) {
	if err := validator.Validate("setup", deps.Registry, deps.Tracer, deps.Logger); err != nil {
		return nil, fmt.Errorf("failed to validate setup deps: %w", err)
	}

	creds, err := credentials.Load(config.CredentialsPath, config.CredentialsSearchRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	deps.Logger.Info("credentials loaded",
		zap.String("source", creds.Source()),
		zap.String("account", creds.AccountName()),
		zap.String("hub", creds.HubName()),
	)

	newTransport := deps.NewTransport
	if newTransport == nil {
		newTransport = transportFor(config.Transport)
		if newTransport == nil {
			return nil, fmt.Errorf("unknown transport %q", config.Transport)
		}
	}

	transport, err := newTransport(creds, config, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s transport: %w", config.Transport, err)
	}

	hub := creds.HubName()
	base, err := producer.NewProducer(transport, producer.Config{
		Hub:            hub,
		Name:           config.ProducerName,
		PublishTimeout: config.PublishTimeout,
	}, deps.Logger)
	if err != nil {
		_ = transport.Close(context.Background())
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	var p pub.Producer = base
	if deps.Journal != nil {
		p = producer.NewJournaledProducer(p, deps.Journal, deps.Registry, hub, deps.Logger)
	}
	p = producer.NewMetricsProducer(p, deps.Registry, hub)
	p = producer.NewTracedProducer(p, deps.Tracer, hub)

	async, err := producer.NewAsyncProducer(p, hub, config.Async, deps.Registry, deps.Logger)
	if err != nil {
		_ = p.Close(context.Background())
		return nil, fmt.Errorf("failed to create async producer: %w", err)
	}

	return &Publisher{
		Credentials: creds,
		Sync:        p,
		Async:       async,
	}, nil
}

func transportFor(name string) TransportFactory {
	switch strings.ToLower(name) {
	case TransportEventHubs:
		return newEventHubsTransport
	case TransportKafka:
		return newKafkaTransport
	default:
		return nil
	}
}

func newEventHubsTransport(creds credentials.Credentials, config Config, logger *zap.Logger) (pub.Transport, error) {
	return eventhubs.New(creds.ConnectionString(), creds.HubName(), config.EventHubs, logger)
}

func newKafkaTransport(creds credentials.Credentials, config Config, logger *zap.Logger) (pub.Transport, error) {
	return kafka.New(creds.ConnectionString(), creds.HubName(), config.Kafka, logger)
}
