package kafka

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"hubpub/internal/credentials"
)

const (
	// KafkaPort is the port of the Event Hubs Kafka endpoint.
	KafkaPort = "9093"
	// connectionStringUser is the fixed SASL user for connection string auth.
	connectionStringUser = "$ConnectionString"
)

// Config groups the tunables of the Kafka-protocol transport.
// Zero values are replaced with defaults by applyDefaults.
type Config struct {
	// Brokers overrides the bootstrap servers derived from the connection string.
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// RequiredAcks is "all" (default), "leader" or "none".
	RequiredAcks string `env:"KAFKA_REQUIRED_ACKS" envDefault:"all"`

	// Timeout is the broker ack timeout.
	Timeout time.Duration `env:"KAFKA_TIMEOUT" envDefault:"10s"`

	// Compression is "none" (default), "gzip", "snappy", "lz4" or "zstd".
	Compression string `env:"KAFKA_COMPRESSION" envDefault:"none"`

	// MaxMessageBytes mirrors the broker's maximum batch size.
	MaxMessageBytes int `env:"KAFKA_MAX_MESSAGE_BYTES" envDefault:"1046528"`

	// DisableTLS turns off TLS and SASL, for local Kafka brokers.
	DisableTLS bool `env:"KAFKA_DISABLE_TLS" envDefault:"false"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1046528
	}
}

// Brokers derives the bootstrap server from the connection string endpoint unless
// brokers were configured explicitly.
func (c Config) brokers(connectionString string) ([]string, error) {
	if len(c.Brokers) > 0 {
		return c.Brokers, nil
	}

	cs, err := credentials.ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	host, err := cs.Namespace()
	if err != nil {
		return nil, err
	}

	return []string{net.JoinHostPort(host, KafkaPort)}, nil
}

func buildSaramaConfig(c Config, connectionString string) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = "hubpub"

	switch strings.ToLower(c.RequiredAcks) {
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("kafka transport: invalid RequiredAcks %q", c.RequiredAcks)
	}

	switch strings.ToLower(c.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("kafka transport: invalid Compression %q", c.Compression)
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Timeout = c.Timeout
	sc.Producer.MaxMessageBytes = c.MaxMessageBytes
	// retries belong to the caller
	sc.Producer.Retry.Max = 0
	sc.Producer.Partitioner = newRoutePartitioner

	if !c.DisableTLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = connectionStringUser
		sc.Net.SASL.Password = connectionString
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("kafka transport: invalid sarama config: %w", err)
	}

	return sc, nil
}
