package pipeline

import "time"

// Event represents a pipeline lifecycle event
// --------------------------------------------
type Event any

// RunStarted is emitted once when a pipeline run begins.
type RunStarted struct {
	RunID     string
	StartedAt time.Time
}

// RowSkipped is emitted for each input row dropped during normalization.
type RowSkipped struct {
	Row    int
	Reason string
}

// InputNormalized reports how many canonical submissions the export yielded.
type InputNormalized struct {
	Submissions int
	Dropped     int
}

// SubmissionValidated is emitted per submission with its validation result.
type SubmissionValidated struct {
	Result ValidationResult
}

// ValidationCompleted summarizes the validation phase.
type ValidationCompleted struct {
	Approved int
	Pending  int
	Rejected int
}

// BatchStarted is emitted at the start of each payment batch.
type BatchStarted struct {
	Number int
	Size   int
}

// PaymentProcessed is emitted per payment attempt with its outcome.
type PaymentProcessed struct {
	Outcome PaymentOutcome
}

// RunHalted signals an early stop; the run still produces a report from
// whatever partial results exist.
type RunHalted struct {
	Err         error
	Unprocessed int
}

// RunCompleted delivers the final report.
type RunCompleted struct {
	Report   Report
	Duration time.Duration
}

// RunError signals that the run aborted before a report could be produced.
type RunError struct {
	Err error
}
