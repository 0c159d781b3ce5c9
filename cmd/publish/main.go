package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/couchbase/gocb/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"hubpub/internal/credentials"
	"hubpub/internal/pub"
	"hubpub/internal/pub/journal"
	"hubpub/internal/pub/metrics"
	"hubpub/internal/pub/tracing"
	"hubpub/internal/setup"
)

const version = "1.0.0"

type Config struct {
	Setup   setup.Config
	Tracing tracing.Config

	PublishMode      string            `env:"PUBLISH_MODE" envDefault:"sync"`
	PublishRoute     string            `env:"PUBLISH_ROUTE" envDefault:"plain"`
	PartitionKey     string            `env:"PARTITION_KEY"`
	PartitionID      int32             `env:"PARTITION_ID" envDefault:"0"`
	StaticProperties map[string]string `env:"STATIC_PROPERTIES"`
	EventCount       int               `env:"EVENT_COUNT" envDefault:"1000"`

	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsPort    int           `env:"METRICS_PORT" envDefault:"9090"`
	MetricsTimeout time.Duration `env:"METRICS_TIMEOUT" envDefault:"30s"`

	ReceiptsEnabled           bool          `env:"RECEIPTS_ENABLED" envDefault:"false"`
	ReceiptsTTL               time.Duration `env:"RECEIPTS_TTL" envDefault:"24h"`
	CouchbaseConnectionString string        `env:"COUCHBASE_CONNECTION_STRING" envDefault:"couchbase://localhost"`
	CouchbaseUsername         string        `env:"COUCHBASE_USERNAME" envDefault:"Administrator"`
	CouchbasePassword         string        `env:"COUCHBASE_PASSWORD" envDefault:"password"`
	CouchbaseBucketName       string        `env:"COUCHBASE_BUCKET_NAME" envDefault:"hubpub"`
	CouchbaseScopeName        string        `env:"COUCHBASE_SCOPE_NAME" envDefault:"_default"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", cfg.LogLevel, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	route, err := routeFor(cfg)
	if err != nil {
		logger.Fatal("invalid route configuration", zap.Error(err))
	}

	if cfg.Setup.ProducerName == "" {
		cfg.Setup.ProducerName = "publish-" + uuid.NewString()[:8]
	}

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo(version, cfg.Setup.Transport)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing, cfg.Setup.Transport)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	deps := setup.Deps{
		Registry: metricsRegistry,
		Tracer:   tracer,
		Logger:   logger,
	}

	var receipts *journal.Journal
	if cfg.ReceiptsEnabled {
		cluster, bucket, err := newCouchbase(cfg)
		if err != nil {
			logger.Fatal("failed to connect to couchbase", zap.Error(err))
		}
		store, err := pub.NewReceiptsStore(cluster, bucket, cfg.CouchbaseScopeName)
		if err != nil {
			logger.Fatal("failed to create receipts store", zap.Error(err))
		}
		defer store.Close()
		receipts, err = journal.NewJournal(store, cfg.ReceiptsTTL)
		if err != nil {
			logger.Fatal("failed to create receipts journal", zap.Error(err))
		}
		deps.Journal = receipts
	}

	publisher, err := setup.Open(cfg.Setup, deps)
	switch {
	case errors.Is(err, credentials.ErrConfigNotFound):
		logger.Fatal("no credentials.json found; set CREDENTIALS_PATH", zap.Error(err))
	case err != nil:
		logger.Fatal("failed to open publisher", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	metricsServer := metrics.NewServer(
		metrics.ServerConfig{
			Port:    cfg.MetricsPort,
			Timeout: cfg.MetricsTimeout,
		},
		metricsRegistry,
		logger,
		func(ctx context.Context) error {
			_, err := publisher.Sync.Properties(ctx)
			return err
		},
	)
	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	props, err := publisher.Sync.Properties(ctx)
	if err != nil {
		logger.Error("failed to read hub properties", zap.Error(err))
	} else {
		logger.Info("hub properties",
			zap.String("name", props.Name),
			zap.Time("createdOn", props.CreatedOn),
			zap.Strings("partitionIds", props.PartitionIDs),
		)
	}

	now := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		switch strings.ToLower(cfg.PublishMode) {
		case "async":
			return publishAsync(gctx, logger, publisher.Async, route, cfg.EventCount)
		default:
			return publishSync(gctx, logger, publisher.Sync, route, cfg.EventCount)
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("publishing failed", zap.Error(err))
	}
	elapsed := time.Since(now)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := publisher.Async.Close(shutdownCtx); err != nil {
		logger.Error("failed to close publisher", zap.Error(err))
	}

	if receipts != nil {
		recorded, err := receipts.ByProducer(shutdownCtx, cfg.Setup.ProducerName)
		if err != nil {
			logger.Error("failed to verify receipts", zap.Error(err))
		} else {
			logger.Info("receipts recorded",
				zap.String("producer", cfg.Setup.ProducerName),
				zap.Int("count", len(recorded)),
			)
		}
	}

	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop metrics server", zap.Error(err))
	}

	fmt.Printf("\n\n %s PUBLISH OF %d EVENTS COMPLETE IN %.2f seconds\n", strings.ToUpper(cfg.PublishMode), cfg.EventCount, elapsed.Seconds())
}

func publishSync(ctx context.Context, logger *zap.Logger, p pub.Producer, route pub.Route, count int) error {
	for i := range count {
		payload, err := order(i)
		if err != nil {
			return err
		}
		if _, err := p.Publish(ctx, payload, route); err != nil {
			return fmt.Errorf("failed to publish event %d: %w", i, err)
		}
	}

	logger.Info(fmt.Sprintf("published %d events", count), zap.String("mode", "sync"))
	return nil
}

func publishAsync(ctx context.Context, logger *zap.Logger, p pub.AsyncProducer, route pub.Route, count int) error {
	results := make([]<-chan pub.Result, 0, count)
	for i := range count {
		payload, err := order(i)
		if err != nil {
			return err
		}
		results = append(results, p.Publish(ctx, payload, route))
	}

	var failed int
	var firstErr error
	for _, ch := range results {
		if r := <-ch; r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to publish %d of %d events: %w", failed, count, firstErr)
	}

	logger.Info(fmt.Sprintf("published %d events", count), zap.String("mode", "async"))
	return nil
}

func routeFor(cfg Config) (pub.Route, error) {
	switch strings.ToLower(cfg.PublishRoute) {
	case "", pub.RoutePlain.String():
		return pub.Plain(), nil
	case pub.RoutePartitionKey.String():
		r := pub.ByPartitionKey(cfg.PartitionKey)
		return r, r.Validate()
	case pub.RoutePartitionID.String():
		r := pub.ByPartitionID(cfg.PartitionID)
		return r, r.Validate()
	case pub.RouteProperties.String():
		props := map[string]string{"application": "hubpub", "layer": "sample"}
		maps.Copy(props, cfg.StaticProperties)
		return pub.WithProperties(props), nil
	default:
		return pub.Route{}, fmt.Errorf("unknown route %q", cfg.PublishRoute)
	}
}

func order(i int) ([]byte, error) {
	customers := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	products := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "10"}

	payload, err := json.Marshal(map[string]any{
		"order_id":    fmt.Sprintf("ORD-%04d", i+1),
		"customer_id": customers[rand.IntN(len(customers))],
		"product_id":  products[rand.IntN(len(products))],
		"amount":      10.0 + rand.Float64()*990.0,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order %d: %w", i, err)
	}

	return payload, nil
}

func newCouchbase(config Config) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(config.CouchbaseConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: config.CouchbaseUsername,
			Password: config.CouchbasePassword,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 10 * time.Second,
			KVTimeout:      5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(config.CouchbaseBucketName)

	err = bucket.WaitUntilReady(5*time.Second, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("bucket not ready: %w", err)
	}

	return cluster, bucket, nil
}
