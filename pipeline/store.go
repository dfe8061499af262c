package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the durable state tracker consulted before validation and before
// every payment. It is the pipeline's only shared mutable resource; all
// writes serialize through it.
// -------------------------------------------------------------------------
type Store interface {
	// Lookup returns the record for the identity, or nil when the identity
	// has never been processed.
	Lookup(ctx context.Context, identity string) (*ProcessedRecord, error)
	// Record upserts the record. The upsert is monotonic: a terminal "sent"
	// status is never overwritten by a non-terminal one.
	Record(ctx context.Context, rec ProcessedRecord) error
	// SaveOutcome appends one payment outcome to the durable outcome log.
	SaveOutcome(ctx context.Context, outcome PaymentOutcome) error
}

// NetworkClient is the ledger boundary. All four calls are potentially slow
// and fallible; implementations mark retryable failures via the
// TransientNetwork capability (see IsTransient) and exhausted source funds
// via FundingExhausted (see IsFundingExhausted).
// -------------------------------------------------------------------------
type NetworkClient interface {
	AddressIsWellFormed(address string) bool
	AccountExists(ctx context.Context, address string) (bool, error)
	HasPrerequisite(ctx context.Context, address string) (bool, error)
	SubmitPayment(ctx context.Context, address string, amount decimal.Decimal) (string, error)
}
