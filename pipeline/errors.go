package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failure cases
var (
	ErrNormalizeFailed    = errors.New("submission normalization failed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrStateTrackerFailed = errors.New("state tracker operation failed")
	ErrFundingExhausted   = errors.New("run halted: distribution funds exhausted")
	ErrRunCancelled       = errors.New("run cancelled")
)

// MalformedInputError reports an unrecoverable defect in the tabular export.
// Row is 1-based over data rows; row 0 refers to the header.
type MalformedInputError struct {
	Row   int
	Field string
	Err   error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input at row %d, field %q: %v", e.Row, e.Field, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Network client implementations signal retryable failures and funding
// exhaustion through capability interfaces rather than shared sentinels,
// keeping the client package free of pipeline imports.

type transientNetworkError interface {
	TransientNetwork() bool
}

// IsTransient reports whether err represents a network failure that may
// succeed on retry.
func IsTransient(err error) bool {
	var t transientNetworkError
	return errors.As(err, &t) && t.TransientNetwork()
}

type fundingExhaustedError interface {
	FundingExhausted() bool
}

// IsFundingExhausted reports whether err signals that the source account
// cannot cover further payments.
func IsFundingExhausted(err error) bool {
	var f fundingExhaustedError
	return errors.As(err, &f) && f.FundingExhausted()
}
