package eventhubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"go.uber.org/zap"

	"hubpub/internal/pub"
)

type fakeBatch struct {
	events []*azeventhubs.EventData
	bytes  uint64
	addErr error
}

func (b *fakeBatch) AddEventData(ed *azeventhubs.EventData, options *azeventhubs.AddEventDataOptions) error {
	if b.addErr != nil {
		return b.addErr
	}
	b.events = append(b.events, ed)
	b.bytes += uint64(len(ed.Body))
	return nil
}

func (b *fakeBatch) NumEvents() int32 {
	return int32(len(b.events))
}

func (b *fakeBatch) NumBytes() uint64 {
	return b.bytes
}

type fakeClient struct {
	props    azeventhubs.EventHubProperties
	propsErr error
	batchErr error
	sendErr  error
	closed   bool

	// batch is handed out by NewBatch; noBatch makes it return nil, nil
	batch    *fakeBatch
	noBatch  bool
	batchOpt *azeventhubs.EventDataBatchOptions
	sent     []EventBatch
}

func (f *fakeClient) NewBatch(ctx context.Context, options *azeventhubs.EventDataBatchOptions) (EventBatch, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.batchOpt = options
	if f.noBatch {
		return nil, nil
	}
	if f.batch == nil {
		f.batch = &fakeBatch{}
	}
	return f.batch, nil
}

func (f *fakeClient) SendBatch(ctx context.Context, batch EventBatch) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, batch)
	return nil
}

func (f *fakeClient) GetEventHubProperties(ctx context.Context, options *azeventhubs.GetEventHubPropertiesOptions) (azeventhubs.EventHubProperties, error) {
	return f.props, f.propsErr
}

func (f *fakeClient) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func mustBatch(t *testing.T, opts pub.BatchOptions, events ...pub.Event) *pub.Batch {
	t.Helper()
	b, err := pub.NewBatch(opts)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	for _, e := range events {
		if err := b.Add(e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return b
}

func TestBatchOptions(t *testing.T) {
	key := "customer-7"
	id := int32(3)

	cases := []struct {
		name    string
		opts    pub.BatchOptions
		wantKey *string
		wantID  *string
	}{
		{"plain", pub.BatchOptions{}, nil, nil},
		{"partition key", pub.BatchOptions{PartitionKey: &key}, &key, nil},
		{"partition id", pub.BatchOptions{PartitionID: &id}, nil, ptr("3")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := batchOptions(mustBatch(t, c.opts), 1024)

			if got.MaxBytes != 1024 {
				t.Errorf("MaxBytes = %d; want 1024", got.MaxBytes)
			}
			if !equalPtr(got.PartitionKey, c.wantKey) {
				t.Errorf("PartitionKey = %v; want %v", deref(got.PartitionKey), deref(c.wantKey))
			}
			if !equalPtr(got.PartitionID, c.wantID) {
				t.Errorf("PartitionID = %v; want %v", deref(got.PartitionID), deref(c.wantID))
			}
		})
	}
}

func TestToEventData(t *testing.T) {
	e, err := pub.NewEvent([]byte("hello"), map[string]string{"app": "billing"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	ed := toEventData(e)

	if string(ed.Body) != "hello" {
		t.Errorf("Body = %q; want hello", ed.Body)
	}
	if ed.MessageID == nil || *ed.MessageID != e.ID {
		t.Errorf("MessageID = %v; want %s", ed.MessageID, e.ID)
	}
	if ed.Properties["app"] != "billing" || len(ed.Properties) != 1 {
		t.Errorf("Properties = %v; want app=billing", ed.Properties)
	}

	plain, _ := pub.NewEvent([]byte("x"), nil)
	if toEventData(plain).Properties != nil {
		t.Error("expected nil properties for an event without properties")
	}
}

func TestSend_CreateBatchFailureIsTransportError(t *testing.T) {
	tr, err := NewWithClient(&fakeClient{batchErr: errors.New("partition 99 not found")}, "hub1", Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	e, _ := pub.NewEvent([]byte("x"), nil)
	err = tr.Send(context.Background(), mustBatch(t, pub.BatchOptions{}, e))
	if !errors.Is(err, pub.ErrTransport) {
		t.Fatalf("error = %v; want ErrTransport", err)
	}
}

func TestSend(t *testing.T) {
	client := &fakeClient{}
	tr, err := NewWithClient(client, "hub1", Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	key := "customer-7"
	e, _ := pub.NewEvent([]byte("hello"), map[string]string{"app": "billing"})
	if err := tr.Send(context.Background(), mustBatch(t, pub.BatchOptions{PartitionKey: &key}, e)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(client.sent) != 1 || client.sent[0] != EventBatch(client.batch) {
		t.Fatalf("sent %d batches; want the created batch once", len(client.sent))
	}
	if client.batchOpt == nil || deref(client.batchOpt.PartitionKey) != key {
		t.Errorf("batch options = %+v; want partition key %s", client.batchOpt, key)
	}
	if len(client.batch.events) != 1 {
		t.Fatalf("batch holds %d events; want 1", len(client.batch.events))
	}
	if got := client.batch.events[0]; string(got.Body) != "hello" || deref(got.MessageID) != e.ID || got.Properties["app"] != "billing" {
		t.Errorf("event data = %+v", got)
	}
}

func TestSend_Failures(t *testing.T) {
	cases := []struct {
		name    string
		client  *fakeClient
		wantErr error
		wantOp  string
	}{
		{
			name:    "event too large",
			client:  &fakeClient{batch: &fakeBatch{addErr: azeventhubs.ErrEventDataTooLarge}},
			wantErr: azeventhubs.ErrEventDataTooLarge,
			wantOp:  "add_event",
		},
		{
			name:   "send rejected",
			client: &fakeClient{sendErr: errors.New("link detached")},
			wantOp: "send_batch",
		},
		{
			name:   "no batch returned",
			client: &fakeClient{noBatch: true},
			wantOp: "create_batch",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, _ := NewWithClient(c.client, "hub1", Config{}, zap.NewNop())

			e, _ := pub.NewEvent([]byte("x"), nil)
			err := tr.Send(context.Background(), mustBatch(t, pub.BatchOptions{}, e))

			var te *pub.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v; want *TransportError", err)
			}
			if te.Op != c.wantOp {
				t.Errorf("Op = %q; want %q", te.Op, c.wantOp)
			}
			if c.wantErr != nil && !errors.Is(err, c.wantErr) {
				t.Errorf("error = %v; want wrapped %v", err, c.wantErr)
			}
			if c.wantOp != "send_batch" && len(c.client.sent) != 0 {
				t.Error("batch sent after a failure")
			}
		})
	}
}

func TestProperties(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	client := &fakeClient{props: azeventhubs.EventHubProperties{
		Name:         "hub1",
		CreatedOn:    created,
		PartitionIDs: []string{"0", "1"},
	}}
	tr, _ := NewWithClient(client, "hub1", Config{}, zap.NewNop())

	props, err := tr.Properties(context.Background())
	if err != nil {
		t.Fatalf("Properties() error = %v", err)
	}
	if props.Name != "hub1" || !props.CreatedOn.Equal(created) || len(props.PartitionIDs) != 2 {
		t.Errorf("Properties = %+v", props)
	}

	client.propsErr = errors.New("unauthorized")
	if _, err := tr.Properties(context.Background()); !errors.Is(err, pub.ErrTransport) {
		t.Errorf("error = %v; want ErrTransport", err)
	}
}

func TestClose(t *testing.T) {
	client := &fakeClient{}
	tr, _ := NewWithClient(client, "hub1", Config{}, zap.NewNop())

	if err := tr.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !client.closed {
		t.Error("client not closed")
	}
}

func TestNewWithClient_Validates(t *testing.T) {
	if _, err := NewWithClient(nil, "hub1", Config{}, zap.NewNop()); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := NewWithClient(&fakeClient{}, "", Config{}, zap.NewNop()); err == nil {
		t.Error("expected error for empty hub")
	}
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestNew_EntityPathMismatch(t *testing.T) {
	connStr := "Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=send;SharedAccessKey=abc=;EntityPath=orders"

	if _, err := New(connStr, "payments", Config{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for a connection string scoped to another hub")
	}
}
