package pub

import (
	"fmt"
	"slices"
)

// BatchOptions holds the partition affinity of a batch. At most one field may be set.
type BatchOptions struct {
	PartitionKey *string
	PartitionID  *int32
}

// Batch is an ordered group of events sent in a single transmission.
// A batch can be sent only once.
type Batch struct {
	events       []Event
	partitionKey *string
	partitionID  *int32
	sent         bool
}

// NewBatch creates an empty batch with the given affinity.
func NewBatch(opts BatchOptions) (*Batch, error) {
	if opts.PartitionKey != nil && opts.PartitionID != nil {
		return nil, fmt.Errorf("%w: partition key and partition id are mutually exclusive", ErrInvalidArgument)
	}
	if opts.PartitionKey != nil && *opts.PartitionKey == "" {
		return nil, fmt.Errorf("%w: partition key must not be empty", ErrInvalidArgument)
	}

	b := Batch{}
	if opts.PartitionKey != nil {
		key := *opts.PartitionKey
		b.partitionKey = &key
	}
	if opts.PartitionID != nil {
		id := *opts.PartitionID
		b.partitionID = &id
	}

	return &b, nil
}

// Add appends an event to the batch.
func (b *Batch) Add(e Event) error {
	if b.sent {
		return ErrBatchSent
	}

	b.events = append(b.events, e)
	return nil
}

// MarkSent seals the batch. It fails if the batch was already sent.
func (b *Batch) MarkSent() error {
	if b.sent {
		return ErrBatchSent
	}

	b.sent = true
	return nil
}

func (b *Batch) Sent() bool {
	return b.sent
}

// Events returns a copy of the batched events.
func (b *Batch) Events() []Event {
	return slices.Clone(b.events)
}

func (b *Batch) Len() int {
	return len(b.events)
}

// Bytes returns the total payload size of the batch.
func (b *Batch) Bytes() int {
	var n int
	for _, e := range b.events {
		n += e.Size()
	}
	return n
}

// PartitionKey returns the partition key, if any.
func (b *Batch) PartitionKey() (string, bool) {
	if b.partitionKey == nil {
		return "", false
	}
	return *b.partitionKey, true
}

// PartitionID returns the explicit partition id, if any.
func (b *Batch) PartitionID() (int32, bool) {
	if b.partitionID == nil {
		return 0, false
	}
	return *b.partitionID, true
}
