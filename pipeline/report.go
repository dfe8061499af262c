package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportCounts aggregates final statuses for the run summary.
type ReportCounts struct {
	Approved         int
	Pending          int
	Rejected         int
	Sent             int
	Failed           int
	SkippedDuplicate int
}

// Report is the structured summary of one pipeline run, suitable for
// serialization to the transparency artifacts. Pure aggregation; no network
// access.
type Report struct {
	RunID       string
	GeneratedAt time.Time

	Approved []ValidationResult
	Pending  []ValidationResult
	Rejected []ValidationResult

	Paid    []PaymentOutcome
	Failed  []PaymentOutcome
	Skipped []PaymentOutcome

	Counts           ReportCounts
	DroppedRows      int
	TotalDistributed decimal.Decimal
	Fund             FundAllocation

	// Halt is the halting condition, empty for a complete run.
	Halt        string
	Unprocessed int
}

// Summarize aggregates validation results and payment outcomes into a
// Report. The caller stamps run metadata (ID, timestamps, halt condition).
func Summarize(results []ValidationResult, outcomes []PaymentOutcome, fund FundAllocation) Report {
	report := Report{
		TotalDistributed: decimal.Zero,
		Fund:             fund,
	}

	for _, res := range results {
		switch res.Status {
		case StatusApproved:
			report.Approved = append(report.Approved, res)
		case StatusPendingPrerequisite:
			report.Pending = append(report.Pending, res)
		case StatusRejected:
			report.Rejected = append(report.Rejected, res)
		}
	}

	for _, out := range outcomes {
		switch out.Status {
		case OutcomeSent:
			report.Paid = append(report.Paid, out)
			report.TotalDistributed = report.TotalDistributed.Add(out.Amount)
		case OutcomeFailed:
			report.Failed = append(report.Failed, out)
		case OutcomeSkippedDuplicate:
			report.Skipped = append(report.Skipped, out)
		}
	}

	report.Counts = ReportCounts{
		Approved:         len(report.Approved),
		Pending:          len(report.Pending),
		Rejected:         len(report.Rejected),
		Sent:             len(report.Paid),
		Failed:           len(report.Failed),
		SkippedDuplicate: len(report.Skipped),
	}

	return report
}
