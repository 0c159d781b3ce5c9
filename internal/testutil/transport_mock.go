package testutil

import (
	"context"
	"sync"
	"time"

	"hubpub/internal/pub"
)

// SentBatch is a batch captured by MockTransport
type SentBatch struct {
	Events       []pub.Event
	PartitionKey *string
	PartitionID  *int32
	Timestamp    time.Time
}

// MockTransport is an in-memory pub.Transport for testing.
// It records every batch it is asked to send and makes no network calls.
type MockTransport struct {
	mu      sync.RWMutex
	batches []SentBatch
	closed  bool

	// SendErr, when set, is returned by every Send
	SendErr error
	// SendDelay blocks each Send until it elapses or the context is done
	SendDelay time.Duration
	// Props is returned by Properties
	Props pub.HubProperties
}

// NewMockTransport creates a new mock transport for the given hub name
func NewMockTransport(hub string) *MockTransport {
	return &MockTransport{
		batches: make([]SentBatch, 0),
		Props: pub.HubProperties{
			Name:         hub,
			CreatedOn:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PartitionIDs: []string{"0", "1", "2", "3"},
		},
	}
}

// Send records the batch. It honours context cancellation while delayed.
func (m *MockTransport) Send(ctx context.Context, batch *pub.Batch) error {
	if m.SendDelay > 0 {
		select {
		case <-time.After(m.SendDelay):
		case <-ctx.Done():
			return pub.NewTransportError("send_batch", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return pub.NewTransportError("send_batch", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return pub.NewTransportError("send_batch", pub.ErrClosed)
	}
	if m.SendErr != nil {
		return pub.NewTransportError("send_batch", m.SendErr)
	}

	sent := SentBatch{
		Events:    batch.Events(),
		Timestamp: time.Now(),
	}
	if key, ok := batch.PartitionKey(); ok {
		sent.PartitionKey = &key
	}
	if id, ok := batch.PartitionID(); ok {
		sent.PartitionID = &id
	}

	m.batches = append(m.batches, sent)
	return nil
}

// Properties returns Props
func (m *MockTransport) Properties(ctx context.Context) (pub.HubProperties, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return pub.HubProperties{}, pub.NewTransportError("properties", pub.ErrClosed)
	}

	return m.Props, nil
}

// Close marks the transport closed
func (m *MockTransport) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Helper methods for test assertions

// Batches returns all sent batches
func (m *MockTransport) Batches() []SentBatch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	batchesCopy := make([]SentBatch, len(m.batches))
	copy(batchesCopy, m.batches)
	return batchesCopy
}

// SendCount returns the number of batches sent
func (m *MockTransport) SendCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.batches)
}

// Closed reports whether Close was called
func (m *MockTransport) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.closed
}

// MockJournal is an in-memory pub.ReceiptJournal for testing
type MockJournal struct {
	mu       sync.Mutex
	receipts []pub.Receipt

	// RecordErr, when set, is returned by every Record
	RecordErr error
}

func NewMockJournal() *MockJournal {
	return &MockJournal{}
}

// Record stores the receipt unless RecordErr is set
func (j *MockJournal) Record(ctx context.Context, r pub.Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.RecordErr != nil {
		return j.RecordErr
	}

	j.receipts = append(j.receipts, r)
	return nil
}

// Receipts returns a copy of recorded receipts
func (j *MockJournal) Receipts() []pub.Receipt {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]pub.Receipt, len(j.receipts))
	copy(out, j.receipts)
	return out
}
