// Package journal records receipts of accepted sends in Couchbase so a run can be
// audited against what the broker acknowledged.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"hubpub/internal/couchbase"
	"hubpub/internal/pub"
	"hubpub/internal/validator"
)

// Store is the subset of the receipts store the journal needs.
type Store interface {
	Insert(ctx context.Context, key string, value pub.Receipt, opts *gocb.InsertOptions) error
	Query(ctx context.Context, query string, opts *gocb.QueryOptions) ([]pub.Receipt, error)
	Keyspace() string
}

var _ Store = (*couchbase.Couchbase[pub.Receipt])(nil)

// Journal implements pub.ReceiptJournal on top of a Couchbase collection.
type Journal struct {
	store Store
	ttl   time.Duration
}

// NewJournal creates a journal keeping receipts for ttl.
func NewJournal(store Store, ttl time.Duration) (*Journal, error) {
	j := Journal{
		store: store,
		ttl:   ttl,
	}

	if err := validator.Validate("journal", j.store, j.ttl); err != nil {
		return nil, fmt.Errorf("failed to validate journal deps: %w", err)
	}

	return &j, nil
}

// Record implements pub.ReceiptJournal.Record. Recording the same receipt twice is not an error.
func (j *Journal) Record(ctx context.Context, r pub.Receipt) error {
	if r.ID == "" {
		r.ID = pub.ReceiptKey(r.Hub, r.MessageID)
	}

	err := j.store.Insert(ctx, r.ID, r, &gocb.InsertOptions{Expiry: j.ttl})
	switch {
	case err == nil, errors.Is(err, gocb.ErrDocumentExists):
		return nil
	default:
		return fmt.Errorf("failed to record receipt %s: %w", r.ID, err)
	}
}

// ByProducer returns the receipts recorded for a producer name.
func (j *Journal) ByProducer(ctx context.Context, producer string) ([]pub.Receipt, error) {
	query := fmt.Sprintf(`
		SELECT RAW r
		FROM %s r
		WHERE r.producer = $producer
		ORDER BY r.sentAt ASC`,
		j.store.Keyspace(),
	)

	receipts, err := j.store.Query(ctx, query, &gocb.QueryOptions{
		NamedParameters: map[string]any{"producer": producer},
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts for producer %s: %w", producer, err)
	}

	return receipts, nil
}
