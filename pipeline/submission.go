package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// Submission is one canonical row from the crowd-sourced export.
type Submission struct {
	Address     string
	Contact     string
	ProjectName string
	ProjectURL  string
	SubmittedAt time.Time
}

// Identity returns the stable deduplication key for the submission.
// The export guarantees one submission per address, so the key is derived
// from the address alone: resubmissions of the same address always collapse
// onto the same record.
func (s Submission) Identity() string {
	sum := sha256.Sum256([]byte(s.Address))
	return hex.EncodeToString(sum[:])
}

// ValidationStatus is the outcome class of validating one submission.
type ValidationStatus string

const (
	StatusApproved            ValidationStatus = "approved"
	StatusPendingPrerequisite ValidationStatus = "pending_prerequisite"
	StatusRejected            ValidationStatus = "rejected"
)

// ValidationResult records why a submission was approved, deferred or
// rejected. Immutable once produced for a run.
type ValidationResult struct {
	Submission Submission
	Status     ValidationStatus
	Reason     string
	CheckedAt  time.Time
}

// OutcomeStatus is the final state of one payment attempt.
type OutcomeStatus string

const (
	OutcomeSent             OutcomeStatus = "sent"
	OutcomeFailed           OutcomeStatus = "failed"
	OutcomeSkippedDuplicate OutcomeStatus = "skipped_duplicate"
)

// PaymentOutcome records one payment attempt against an approved recipient.
type PaymentOutcome struct {
	Identity         string
	RecipientAddress string
	Amount           decimal.Decimal
	Status           OutcomeStatus
	NetworkReference string
	Error            string
	AttemptedAt      time.Time
}

// RecordStatus is the persisted lifecycle state of a submission identity.
// "sent" and "rejected" are terminal; the rest may be promoted on a later run.
type RecordStatus string

const (
	RecordApproved RecordStatus = "approved"
	RecordPending  RecordStatus = "pending_prerequisite"
	RecordRejected RecordStatus = "rejected"
	RecordSent     RecordStatus = "sent"
	RecordFailed   RecordStatus = "failed"
)

// Terminal reports whether the status will never change on rerun.
func (s RecordStatus) Terminal() bool {
	return s == RecordSent || s == RecordRejected
}

// ProcessedRecord is the durable state tracked per submission identity.
// Created on first validation, updated on payment attempts, never deleted
// by the pipeline.
type ProcessedRecord struct {
	Identity      string
	Address       string
	Status        RecordStatus
	Reason        string
	PaymentRef    string
	LastAttemptAt time.Time
}
