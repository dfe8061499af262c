package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-build/ogc-pipeline/pipeline"
	"github.com/open-build/ogc-pipeline/pipeline/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrLookupFailed      = errors.New("record lookup failed")
	ErrRecordFailed      = errors.New("record upsert failed")
	ErrSaveOutcomeFailed = errors.New("outcome insert failed")
)

// Store implements pipeline.Store interface using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// Lookup returns the record for the identity, or nil if none exists
func (s *Store) Lookup(ctx context.Context, identity string) (*pipeline.ProcessedRecord, error) {
	var row dbrow.ProcessedRecord
	err := s.pool.QueryRow(ctx, `
		SELECT identity, address, status, reason, payment_ref, last_attempt_at
		FROM processed_records
		WHERE identity = $1
	`, identity).Scan(&row.Identity, &row.Address, &row.Status, &row.Reason, &row.PaymentRef, &row.LastAttemptAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	rec := row.ToRecord()
	return &rec, nil
}

// Record upserts the record for its identity. Updates are monotonic: a row
// that reached "sent" is never overwritten, so a rerun can never demote a
// paid identity.
func (s *Store) Record(ctx context.Context, rec pipeline.ProcessedRecord) error {
	row := dbrow.FromRecord(rec)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_records (identity, address, status, reason, payment_ref, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity) DO UPDATE SET
			address = EXCLUDED.address,
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			payment_ref = EXCLUDED.payment_ref,
			last_attempt_at = EXCLUDED.last_attempt_at
		WHERE processed_records.status <> 'sent'
	`, row.Identity, row.Address, row.Status, row.Reason, row.PaymentRef, row.LastAttemptAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}
	return nil
}

// SaveOutcome appends one payment attempt to the audit log
func (s *Store) SaveOutcome(ctx context.Context, out pipeline.PaymentOutcome) error {
	row := dbrow.FromOutcome(out)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_outcomes (identity, address, amount, status, network_ref, error, attempted_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
	`, row.Identity, row.Address, row.Amount, row.Status, row.NetworkRef, row.Error, row.AttemptedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveOutcomeFailed, err)
	}
	return nil
}
