package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/open-build/ogc-pipeline/pkg/clock"
	"github.com/open-build/ogc-pipeline/pkg/retry"
)

// Default distributor configuration values
const (
	DefaultBatchSize    = 5
	DefaultBatchDelay   = 10 * time.Second
	DefaultPaymentDelay = 2 * time.Second
)

// DistributorOption configures the Distributor
type DistributorOption func(*Distributor)

// WithBatchSize sets how many payments form one batch
func WithBatchSize(n int) DistributorOption {
	return func(d *Distributor) { d.batchSize = n }
}

// WithBatchDelay sets the pause between batches
func WithBatchDelay(delay time.Duration) DistributorOption {
	return func(d *Distributor) { d.batchDelay = delay }
}

// WithPaymentDelay sets the pause between payments within a batch
func WithPaymentDelay(delay time.Duration) DistributorOption {
	return func(d *Distributor) { d.paymentDelay = delay }
}

// WithDistributorClock injects a custom Clock (e.g., for testing)
func WithDistributorClock(c clock.Clock) DistributorOption {
	return func(d *Distributor) { d.clock = c }
}

// WithPaymentRetry sets the bounded-retry policy for payment submission
func WithPaymentRetry(p retry.Policy) DistributorOption {
	return func(d *Distributor) { d.retry = p }
}

// WithDistributorNotify registers an observer for batch and payment events
func WithDistributorNotify(fn func(Event)) DistributorOption {
	return func(d *Distributor) { d.notify = fn }
}

// Distributor walks the approved list in sequential bounded batches and
// issues one payment per recipient. Payments are never concurrent: ordering
// and destination rate limits are correctness requirements here.
// -----------------------------------------------------------------------
type Distributor struct {
	network      NetworkClient
	store        Store
	policy       AmountPolicy
	clock        clock.Clock
	batchSize    int
	batchDelay   time.Duration
	paymentDelay time.Duration
	retry        retry.Policy
	notify       func(Event)
}

// NewDistributor constructs a Distributor with required dependencies and options.
func NewDistributor(network NetworkClient, store Store, policy AmountPolicy, opts ...DistributorOption) *Distributor {
	d := &Distributor{
		network:      network,
		store:        store,
		policy:       policy,
		clock:        clock.SystemClock{},
		batchSize:    DefaultBatchSize,
		batchDelay:   DefaultBatchDelay,
		paymentDelay: DefaultPaymentDelay,
		retry:        retry.NewPolicy(3, 2*time.Second),
		notify:       func(Event) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute produces one PaymentOutcome per approved submission, in input
// order. A single recipient failing never aborts the run; funding
// exhaustion halts it immediately with ErrFundingExhausted, returning the
// outcomes produced so far. Cancellation stops cleanly between payments.
func (d *Distributor) Distribute(ctx context.Context, approved []Submission) ([]PaymentOutcome, error) {
	outcomes := make([]PaymentOutcome, 0, len(approved))

	for start := 0; start < len(approved); start += d.batchSize {
		end := min(start+d.batchSize, len(approved))

		if start > 0 && d.batchDelay > 0 {
			if err := d.pause(ctx, d.batchDelay); err != nil {
				return outcomes, err
			}
		}
		d.notify(BatchStarted{Number: start/d.batchSize + 1, Size: end - start})

		for i := start; i < end; i++ {
			if i > start && d.paymentDelay > 0 {
				if err := d.pause(ctx, d.paymentDelay); err != nil {
					return outcomes, err
				}
			}
			if err := ctx.Err(); err != nil {
				return outcomes, fmt.Errorf("%w: %w", ErrRunCancelled, err)
			}

			outcome, err := d.payOne(ctx, approved[i])
			if err != nil {
				if IsFundingExhausted(err) {
					outcomes = append(outcomes, outcome)
					d.notify(PaymentProcessed{Outcome: outcome})
					return outcomes, fmt.Errorf("%w: %w", ErrFundingExhausted, err)
				}
				return outcomes, err
			}
			outcomes = append(outcomes, outcome)
			d.notify(PaymentProcessed{Outcome: outcome})
		}
	}

	return outcomes, nil
}

// payOne issues a single payment attempt, persisting state before moving on.
// The returned error is non-nil only for state tracker failures,
// cancellation, or funding exhaustion; a plain failed payment is expressed
// in the outcome alone.
func (d *Distributor) payOne(ctx context.Context, sub Submission) (PaymentOutcome, error) {
	identity := sub.Identity()
	now := d.clock.Now()

	// Re-check right before paying: a prior run (or a duplicate row in this
	// one) may already have paid this identity.
	prior, err := d.store.Lookup(ctx, identity)
	if err != nil {
		return PaymentOutcome{}, fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
	}
	if prior != nil && prior.Status == RecordSent {
		outcome := PaymentOutcome{
			Identity:         identity,
			RecipientAddress: sub.Address,
			Status:           OutcomeSkippedDuplicate,
			NetworkReference: prior.PaymentRef,
			AttemptedAt:      now,
		}
		if err := d.store.SaveOutcome(ctx, outcome); err != nil {
			return PaymentOutcome{}, fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
		}
		return outcome, nil
	}

	amount := d.policy.Next()

	ref, err := retry.Do(ctx, d.retry, func(ctx context.Context) (string, error) {
		return d.network.SubmitPayment(ctx, sub.Address, amount)
	}, IsTransient)
	if err != nil {
		if ctx.Err() != nil {
			return PaymentOutcome{}, fmt.Errorf("%w: %w", ErrRunCancelled, ctx.Err())
		}
		outcome := PaymentOutcome{
			Identity:         identity,
			RecipientAddress: sub.Address,
			Amount:           amount,
			Status:           OutcomeFailed,
			Error:            err.Error(),
			AttemptedAt:      now,
		}
		if recErr := d.recordAndSave(ctx, sub, RecordFailed, err.Error(), "", outcome); recErr != nil {
			return PaymentOutcome{}, recErr
		}
		if IsFundingExhausted(err) {
			return outcome, err
		}
		return outcome, nil
	}

	outcome := PaymentOutcome{
		Identity:         identity,
		RecipientAddress: sub.Address,
		Amount:           amount,
		Status:           OutcomeSent,
		NetworkReference: ref,
		AttemptedAt:      now,
	}
	// Persist immediately: a crash mid-batch must lose at most the in-flight
	// payment, never record one that did not happen.
	if err := d.recordAndSave(ctx, sub, RecordSent, "", ref, outcome); err != nil {
		return PaymentOutcome{}, err
	}
	return outcome, nil
}

func (d *Distributor) recordAndSave(ctx context.Context, sub Submission, status RecordStatus, reason, ref string, outcome PaymentOutcome) error {
	rec := ProcessedRecord{
		Identity:      sub.Identity(),
		Address:       sub.Address,
		Status:        status,
		Reason:        reason,
		PaymentRef:    ref,
		LastAttemptAt: outcome.AttemptedAt,
	}
	if err := d.store.Record(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
	}
	if err := d.store.SaveOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
	}
	return nil
}

func (d *Distributor) pause(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrRunCancelled, ctx.Err())
	case <-d.clock.After(delay):
		return nil
	}
}
