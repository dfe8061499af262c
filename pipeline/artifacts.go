package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Artifact serialization rows. Domain types stay untagged; the JSON shape
// of the transparency artifacts is pinned here instead.

type outcomeRow struct {
	Identity  string `json:"identity"`
	Address   string `json:"address"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
	At        string `json:"at"`
}

type reportDoc struct {
	RunID            string            `json:"run_id"`
	GeneratedAt      string            `json:"generated_at"`
	Counts           reportCountsDoc   `json:"counts"`
	DroppedRows      int               `json:"dropped_rows"`
	TotalDistributed string            `json:"total_distributed"`
	Fund             fundDoc           `json:"fund"`
	Halt             string            `json:"halt,omitempty"`
	Unprocessed      int               `json:"unprocessed,omitempty"`
	Pending          []validationDoc   `json:"pending_prerequisite"`
	Rejected         []validationDoc   `json:"rejected"`
	Payments         []paymentDoc      `json:"payments"`
}

type reportCountsDoc struct {
	Approved         int `json:"approved"`
	Pending          int `json:"pending_prerequisite"`
	Rejected         int `json:"rejected"`
	Sent             int `json:"sent"`
	Failed           int `json:"failed"`
	SkippedDuplicate int `json:"skipped_duplicate"`
}

type fundDoc struct {
	GrossAmount      string            `json:"gross_amount"`
	ContributionRate string            `json:"contribution_rate"`
	Contribution     string            `json:"contribution"`
	Categories       []fundCategoryDoc `json:"categories"`
}

type fundCategoryDoc struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type validationDoc struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

type paymentDoc struct {
	Address   string `json:"address"`
	Status    string `json:"status"`
	Amount    string `json:"amount,omitempty"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WriteRecipientsList writes the addresses approved in this run but not yet
// paid, one per line, ready to feed a later distribution pass.
func WriteRecipientsList(w io.Writer, report Report) error {
	paid := make(map[string]struct{}, len(report.Paid)+len(report.Skipped))
	for _, out := range report.Paid {
		paid[out.RecipientAddress] = struct{}{}
	}
	for _, out := range report.Skipped {
		paid[out.RecipientAddress] = struct{}{}
	}

	for _, res := range report.Approved {
		if _, ok := paid[res.Submission.Address]; ok {
			continue
		}
		if _, err := fmt.Fprintln(w, res.Submission.Address); err != nil {
			return fmt.Errorf("write recipients list: %w", err)
		}
	}
	return nil
}

// WriteOutcomeLog writes one JSON line per submission with its final status,
// validation results first, then payment outcomes in attempt order.
func WriteOutcomeLog(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)

	for _, results := range [][]ValidationResult{report.Pending, report.Rejected} {
		for _, res := range results {
			row := outcomeRow{
				Identity: res.Submission.Identity(),
				Address:  res.Submission.Address,
				Status:   string(res.Status),
				Reason:   res.Reason,
				At:       res.CheckedAt.UTC().Format(time.RFC3339),
			}
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("write outcome log: %w", err)
			}
		}
	}

	for _, outcomes := range [][]PaymentOutcome{report.Paid, report.Skipped, report.Failed} {
		for _, out := range outcomes {
			row := outcomeRow{
				Identity:  out.Identity,
				Address:   out.RecipientAddress,
				Status:    string(out.Status),
				Reference: out.NetworkReference,
				Error:     out.Error,
				At:        out.AttemptedAt.UTC().Format(time.RFC3339),
			}
			if !out.Amount.IsZero() {
				row.Amount = out.Amount.String()
			}
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("write outcome log: %w", err)
			}
		}
	}
	return nil
}

// WriteReport writes the run summary as indented JSON.
func WriteReport(w io.Writer, report Report) error {
	doc := reportDoc{
		RunID:            report.RunID,
		GeneratedAt:      report.GeneratedAt.UTC().Format(time.RFC3339),
		DroppedRows:      report.DroppedRows,
		TotalDistributed: report.TotalDistributed.String(),
		Halt:             report.Halt,
		Unprocessed:      report.Unprocessed,
		Pending:          make([]validationDoc, 0, len(report.Pending)),
		Rejected:         make([]validationDoc, 0, len(report.Rejected)),
		Payments:         make([]paymentDoc, 0, len(report.Paid)+len(report.Skipped)+len(report.Failed)),
		Counts: reportCountsDoc{
			Approved:         report.Counts.Approved,
			Pending:          report.Counts.Pending,
			Rejected:         report.Counts.Rejected,
			Sent:             report.Counts.Sent,
			Failed:           report.Counts.Failed,
			SkippedDuplicate: report.Counts.SkippedDuplicate,
		},
		Fund: fundDoc{
			GrossAmount:      report.Fund.GrossAmount.String(),
			ContributionRate: report.Fund.ContributionRate.String(),
			Contribution:     report.Fund.Contribution.String(),
			Categories:       make([]fundCategoryDoc, 0, len(report.Fund.Categories)),
		},
	}

	for _, c := range report.Fund.Categories {
		doc.Fund.Categories = append(doc.Fund.Categories, fundCategoryDoc{Name: c.Name, Amount: c.Amount.String()})
	}
	for _, res := range report.Pending {
		doc.Pending = append(doc.Pending, validationDoc{Address: res.Submission.Address, Reason: res.Reason})
	}
	for _, res := range report.Rejected {
		doc.Rejected = append(doc.Rejected, validationDoc{Address: res.Submission.Address, Reason: res.Reason})
	}
	for _, outcomes := range [][]PaymentOutcome{report.Paid, report.Skipped, report.Failed} {
		for _, out := range outcomes {
			p := paymentDoc{
				Address:   out.RecipientAddress,
				Status:    string(out.Status),
				Reference: out.NetworkReference,
				Error:     out.Error,
			}
			if !out.Amount.IsZero() {
				p.Amount = out.Amount.String()
			}
			doc.Payments = append(doc.Payments, p)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
