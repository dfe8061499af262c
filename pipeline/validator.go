package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/open-build/ogc-pipeline/pkg/clock"
	"github.com/open-build/ogc-pipeline/pkg/retry"
)

// Validation reasons. Lookup failures name the failing call so that an
// infrastructure rejection is distinguishable from a true negative.
const (
	ReasonMalformedAddress = "malformed address"
	ReasonAccountNotFound  = "account not found"
	ReasonNoPrerequisite   = "prerequisite not established"
	ReasonApproved         = "ready for distribution"
	ReasonPreviouslyPaid   = "previously paid"
)

// ValidatorOption configures the Validator
type ValidatorOption func(*Validator)

// WithValidatorClock injects a custom Clock (e.g., for testing)
func WithValidatorClock(c clock.Clock) ValidatorOption {
	return func(v *Validator) { v.clock = c }
}

// WithValidatorRetry sets the bounded-retry policy for network lookups
func WithValidatorRetry(p retry.Policy) ValidatorOption {
	return func(v *Validator) { v.retry = p }
}

// Validator runs the per-submission checks in order, short-circuiting on
// the first failure: format, duplicate, existence, prerequisite.
// Read-only towards the network; writes one ProcessedRecord per submission.
// -------------------------------------------------------------------------
type Validator struct {
	network NetworkClient
	store   Store
	clock   clock.Clock
	retry   retry.Policy
}

// NewValidator constructs a Validator with required dependencies and options.
func NewValidator(network NetworkClient, store Store, opts ...ValidatorOption) *Validator {
	v := &Validator{
		network: network,
		store:   store,
		clock:   clock.SystemClock{},
		retry:   retry.NewPolicy(3, 2*time.Second),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks one submission and persists the resulting record.
// It returns an error only for state tracker failures or cancellation;
// network negatives and lookup failures are expressed in the result status.
func (v *Validator) Validate(ctx context.Context, sub Submission) (ValidationResult, error) {
	now := v.clock.Now()

	if !v.network.AddressIsWellFormed(sub.Address) {
		return v.conclude(ctx, sub, StatusRejected, ReasonMalformedAddress, now)
	}

	prior, err := v.store.Lookup(ctx, sub.Identity())
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
	}
	if prior != nil && prior.Status.Terminal() {
		// Idempotence: terminal identities keep their prior outcome.
		if prior.Status == RecordSent {
			return ValidationResult{Submission: sub, Status: StatusApproved, Reason: ReasonPreviouslyPaid, CheckedAt: now}, nil
		}
		return ValidationResult{Submission: sub, Status: StatusRejected, Reason: prior.Reason, CheckedAt: now}, nil
	}

	exists, err := retry.Do(ctx, v.retry, func(ctx context.Context) (bool, error) {
		return v.network.AccountExists(ctx, sub.Address)
	}, IsTransient)
	if err != nil {
		if ctx.Err() != nil {
			return ValidationResult{}, ctx.Err()
		}
		return v.conclude(ctx, sub, StatusRejected, fmt.Sprintf("account lookup failed: %v", err), now)
	}
	if !exists {
		return v.conclude(ctx, sub, StatusRejected, ReasonAccountNotFound, now)
	}

	hasPrerequisite, err := retry.Do(ctx, v.retry, func(ctx context.Context) (bool, error) {
		return v.network.HasPrerequisite(ctx, sub.Address)
	}, IsTransient)
	if err != nil {
		if ctx.Err() != nil {
			return ValidationResult{}, ctx.Err()
		}
		return v.conclude(ctx, sub, StatusRejected, fmt.Sprintf("prerequisite lookup failed: %v", err), now)
	}
	if !hasPrerequisite {
		return v.conclude(ctx, sub, StatusPendingPrerequisite, ReasonNoPrerequisite, now)
	}

	return v.conclude(ctx, sub, StatusApproved, ReasonApproved, now)
}

// conclude persists the record for the outcome and returns the result.
func (v *Validator) conclude(ctx context.Context, sub Submission, status ValidationStatus, reason string, now time.Time) (ValidationResult, error) {
	rec := ProcessedRecord{
		Identity:      sub.Identity(),
		Address:       sub.Address,
		Status:        recordStatus(status),
		Reason:        reason,
		LastAttemptAt: now,
	}
	if err := v.store.Record(ctx, rec); err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %w", ErrStateTrackerFailed, err)
	}
	return ValidationResult{Submission: sub, Status: status, Reason: reason, CheckedAt: now}, nil
}

func recordStatus(status ValidationStatus) RecordStatus {
	switch status {
	case StatusApproved:
		return RecordApproved
	case StatusPendingPrerequisite:
		return RecordPending
	default:
		return RecordRejected
	}
}
