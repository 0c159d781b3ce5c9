package setup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"hubpub/internal/credentials"
	"hubpub/internal/pub"
	"hubpub/internal/pub/metrics"
	"hubpub/internal/pub/producer"
	"hubpub/internal/pub/tracing"
	"hubpub/internal/testutil"
)

const credentialsJSON = `{
	"EVENTSHUB_ACCOUNT_NAME": "acct",
	"EVENTSHUB_NAME": "hub1",
	"EVENTSHUB_CONNECTION_STRING": "Endpoint=sb://acct.servicebus.windows.net/;SharedAccessKeyName=send;SharedAccessKey=abc="
}`

func writeCredentials(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(credentialsJSON), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	return path
}

func testDeps(tr *testutil.MockTransport) Deps {
	return Deps{
		Registry: metrics.NewRegistry(),
		Tracer:   tracing.NewTracerFromProvider(sdktrace.NewTracerProvider(), "hubpub-test", "test"),
		Logger:   zap.NewNop(),
		NewTransport: func(creds credentials.Credentials, config Config, logger *zap.Logger) (pub.Transport, error) {
			return tr, nil
		},
	}
}

func TestOpen(t *testing.T) {
	tr := testutil.NewMockTransport("hub1")
	journal := testutil.NewMockJournal()
	deps := testDeps(tr)
	deps.Journal = journal

	p, err := Open(Config{
		CredentialsPath: writeCredentials(t),
		ProducerName:    "sample",
		Async:           producer.AsyncConfig{MaxInFlight: 2},
	}, deps)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if p.Credentials.HubName() != "hub1" || p.Credentials.AccountName() != "acct" {
		t.Errorf("unexpected credentials %s/%s", p.Credentials.AccountName(), p.Credentials.HubName())
	}

	r, err := producer.PublishWithPartitionKey(context.Background(), p.Sync, []byte("x"), "k")
	if err != nil {
		t.Fatalf("sync publish: %v", err)
	}
	if r.Hub != "hub1" || r.Producer != "sample" {
		t.Errorf("unexpected receipt %+v", r)
	}

	res := <-producer.PublishPlainAsync(context.Background(), p.Async, []byte("y"))
	if res.Err != nil {
		t.Fatalf("async publish: %v", res.Err)
	}

	if tr.SendCount() != 2 {
		t.Errorf("sent %d, want 2", tr.SendCount())
	}
	if len(journal.Receipts()) != 2 {
		t.Errorf("journaled %d receipts, want 2", len(journal.Receipts()))
	}

	if err := p.Async.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !tr.Closed() {
		t.Error("transport not closed")
	}
	if _, err := producer.PublishPlain(context.Background(), p.Sync, []byte("z")); !errors.Is(err, pub.ErrClosed) {
		t.Errorf("publish after close = %v, want ErrClosed", err)
	}
}

func TestOpen_ConfigNotFound(t *testing.T) {
	tr := testutil.NewMockTransport("hub1")

	_, err := Open(Config{CredentialsPath: filepath.Join(t.TempDir(), "missing.json")}, testDeps(tr))
	if !errors.Is(err, credentials.ErrConfigNotFound) {
		t.Fatalf("Open = %v, want ErrConfigNotFound", err)
	}
}

func TestOpen_UnknownTransport(t *testing.T) {
	deps := testDeps(testutil.NewMockTransport("hub1"))
	deps.NewTransport = nil

	_, err := Open(Config{CredentialsPath: writeCredentials(t), Transport: "carrier-pigeon"}, deps)
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestOpen_TransportFailure(t *testing.T) {
	deps := testDeps(nil)
	boom := errors.New("dial failed")
	deps.NewTransport = func(credentials.Credentials, Config, *zap.Logger) (pub.Transport, error) {
		return nil, boom
	}

	if _, err := Open(Config{CredentialsPath: writeCredentials(t)}, deps); !errors.Is(err, boom) {
		t.Fatalf("Open = %v, want wrapped dial error", err)
	}
}

func TestOpen_ValidatesDeps(t *testing.T) {
	if _, err := Open(Config{}, Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestTransportFor(t *testing.T) {
	for _, name := range []string{"eventhubs", "EventHubs", "kafka"} {
		if transportFor(name) == nil {
			t.Errorf("transportFor(%q) = nil", name)
		}
	}
	if transportFor("amqp") != nil {
		t.Error("transportFor(amqp) != nil")
	}
}
