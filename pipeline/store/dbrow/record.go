package dbrow

import (
	"time"

	"github.com/open-build/ogc-pipeline/pipeline"
)

// ProcessedRecord represents a submission record as stored in the database
type ProcessedRecord struct {
	Identity      string    `db:"identity"`
	Address       string    `db:"address"`
	Status        string    `db:"status"`
	Reason        string    `db:"reason"`
	PaymentRef    string    `db:"payment_ref"`
	LastAttemptAt time.Time `db:"last_attempt_at"`
	// created_at is handled by database DEFAULT CURRENT_TIMESTAMP
}

// FromRecord converts a domain record to its database row
func FromRecord(rec pipeline.ProcessedRecord) ProcessedRecord {
	return ProcessedRecord{
		Identity:      rec.Identity,
		Address:       rec.Address,
		Status:        string(rec.Status),
		Reason:        rec.Reason,
		PaymentRef:    rec.PaymentRef,
		LastAttemptAt: rec.LastAttemptAt,
	}
}

// ToRecord converts a database row back to the domain record
func (r ProcessedRecord) ToRecord() pipeline.ProcessedRecord {
	return pipeline.ProcessedRecord{
		Identity:      r.Identity,
		Address:       r.Address,
		Status:        pipeline.RecordStatus(r.Status),
		Reason:        r.Reason,
		PaymentRef:    r.PaymentRef,
		LastAttemptAt: r.LastAttemptAt,
	}
}

// PaymentOutcome represents a payment attempt as stored in the database
type PaymentOutcome struct {
	Identity    string    `db:"identity"`
	Address     string    `db:"address"`
	Amount      string    `db:"amount"`
	Status      string    `db:"status"`
	NetworkRef  string    `db:"network_ref"`
	Error       string    `db:"error"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// FromOutcome converts a domain payment outcome to its database row.
// The amount travels as text and is cast to NUMERIC in SQL, so the exact
// decimal representation survives the round trip.
func FromOutcome(out pipeline.PaymentOutcome) PaymentOutcome {
	return PaymentOutcome{
		Identity:    out.Identity,
		Address:     out.RecipientAddress,
		Amount:      out.Amount.String(),
		Status:      string(out.Status),
		NetworkRef:  out.NetworkReference,
		Error:       out.Error,
		AttemptedAt: out.AttemptedAt,
	}
}
