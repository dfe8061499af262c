package pipeline_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-build/ogc-pipeline/pipeline"
)

// TestSummarize tests run report aggregation
func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("it buckets results and outcomes by status", func(t *testing.T) {
		t.Parallel()

		// Arrange
		results := []pipeline.ValidationResult{
			approvedResult(1),
			approvedResult(2),
			pendingResult(3),
			rejectedResult(4, pipeline.ReasonMalformedAddress),
		}
		outcomes := []pipeline.PaymentOutcome{
			sentOutcome(1, "1.50"),
			failedOutcome(2, "op_no_trust"),
		}

		// Act
		report := pipeline.Summarize(results, outcomes, pipeline.FundAllocation{})

		// Assert
		assert.Equal(t, 2, report.Counts.Approved)
		assert.Equal(t, 1, report.Counts.Pending)
		assert.Equal(t, 1, report.Counts.Rejected)
		assert.Equal(t, 1, report.Counts.Sent)
		assert.Equal(t, 1, report.Counts.Failed)
		assert.Equal(t, 0, report.Counts.SkippedDuplicate)
	})

	t.Run("it totals only the payments that were actually sent", func(t *testing.T) {
		t.Parallel()

		// Arrange
		outcomes := []pipeline.PaymentOutcome{
			sentOutcome(1, "1.50"),
			sentOutcome(2, "2.25"),
			failedOutcome(3, "op_no_trust"),
			skippedOutcome(4),
		}

		// Act
		report := pipeline.Summarize(nil, outcomes, pipeline.FundAllocation{})

		// Assert
		assert.True(t, report.TotalDistributed.Equal(decimal.RequireFromString("3.75")),
			"Expected total 3.75, got %s", report.TotalDistributed)
	})

	t.Run("it carries the fund allocation through", func(t *testing.T) {
		t.Parallel()

		// Arrange
		fund := pipeline.FundAllocation{
			GrossAmount:  decimal.RequireFromString("10"),
			Contribution: decimal.RequireFromString("0.01"),
		}

		// Act
		report := pipeline.Summarize(nil, nil, fund)

		// Assert
		require.True(t, report.Fund.GrossAmount.Equal(fund.GrossAmount))
		require.True(t, report.Fund.Contribution.Equal(fund.Contribution))
	})
}

// Test data helpers

func approvedResult(n int) pipeline.ValidationResult {
	return pipeline.ValidationResult{
		Submission: submission(n),
		Status:     pipeline.StatusApproved,
		Reason:     pipeline.ReasonApproved,
	}
}

func pendingResult(n int) pipeline.ValidationResult {
	return pipeline.ValidationResult{
		Submission: submission(n),
		Status:     pipeline.StatusPendingPrerequisite,
		Reason:     pipeline.ReasonNoPrerequisite,
	}
}

func rejectedResult(n int, reason string) pipeline.ValidationResult {
	return pipeline.ValidationResult{
		Submission: submission(n),
		Status:     pipeline.StatusRejected,
		Reason:     reason,
	}
}

func sentOutcome(n int, amount string) pipeline.PaymentOutcome {
	return pipeline.PaymentOutcome{
		Identity:         submission(n).Identity(),
		RecipientAddress: address(n),
		Amount:           decimal.RequireFromString(amount),
		Status:           pipeline.OutcomeSent,
		NetworkReference: "tx-0001",
	}
}

func failedOutcome(n int, msg string) pipeline.PaymentOutcome {
	return pipeline.PaymentOutcome{
		Identity:         submission(n).Identity(),
		RecipientAddress: address(n),
		Amount:           decimal.RequireFromString("1"),
		Status:           pipeline.OutcomeFailed,
		Error:            msg,
	}
}

func skippedOutcome(n int) pipeline.PaymentOutcome {
	return pipeline.PaymentOutcome{
		Identity:         submission(n).Identity(),
		RecipientAddress: address(n),
		Status:           pipeline.OutcomeSkippedDuplicate,
		NetworkReference: "tx-0042",
	}
}
