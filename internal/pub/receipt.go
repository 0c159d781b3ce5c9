package pub

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"hubpub/internal/couchbase"
)

// Receipt records a send accepted by the broker.
type Receipt struct {
	ID           string     `json:"id"`
	MessageID    string     `json:"messageID"`
	Hub          string     `json:"hub"`
	Producer     string     `json:"producer,omitempty"`
	Route        string     `json:"route"`
	PartitionKey string     `json:"partitionKey,omitempty"`
	PartitionID  *int32     `json:"partitionID,omitempty"`
	Bytes        int        `json:"bytes"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

// ReceiptJournal persists receipts of accepted sends.
type ReceiptJournal interface {
	Record(ctx context.Context, r Receipt) error
}

func ReceiptKey(hub, messageID string) string {
	return fmt.Sprintf("receipt::%s::%s", hub, messageID)
}

func NewReceiptsStore(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*couchbase.Couchbase[Receipt], error) {
	collection := bucket.Scope(scope).Collection("receipts")
	store, err := couchbase.NewCouchbase[Receipt](cluster, bucket, collection)
	if err != nil {
		return nil, err
	}

	return store, nil
}
