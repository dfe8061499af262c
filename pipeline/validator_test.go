package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-build/ogc-pipeline/pipeline"
	"github.com/open-build/ogc-pipeline/pkg/retry"
)

// TestValidatorBehavior tests the per-submission check sequence
func TestValidatorBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it approves a funded account with the prerequisite", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		store := newMockStore()
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusApproved, result.Status)
		assertRecordedStatus(t, store, submission(1), pipeline.RecordApproved)
	})

	t.Run("it rejects a malformed address without touching the network", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		store := newMockStore()
		validator := newTestValidator(network, store)
		sub := pipeline.Submission{Address: "not-an-address"}

		// Act
		result, err := validator.Validate(t.Context(), sub)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusRejected, result.Status)
		assert.Equal(t, pipeline.ReasonMalformedAddress, result.Reason)
		assertRecordedStatus(t, store, sub, pipeline.RecordRejected)
	})

	t.Run("it rejects when the account does not exist", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		network.missing[address(1)] = true
		store := newMockStore()
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusRejected, result.Status)
		assert.Equal(t, pipeline.ReasonAccountNotFound, result.Reason)
	})

	t.Run("it defers when the prerequisite is missing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		network.noPrerequisite[address(1)] = true
		store := newMockStore()
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusPendingPrerequisite, result.Status)
		assert.Equal(t, pipeline.ReasonNoPrerequisite, result.Reason)
		assertRecordedStatus(t, store, submission(1), pipeline.RecordPending)
	})

	t.Run("it keeps the prior outcome for an already paid identity", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		store := newMockStore()
		store.preload(pipeline.ProcessedRecord{
			Identity:   submission(1).Identity(),
			Address:    address(1),
			Status:     pipeline.RecordSent,
			PaymentRef: "tx-0042",
		})
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusApproved, result.Status)
		assert.Equal(t, pipeline.ReasonPreviouslyPaid, result.Reason)
		assertRecordedStatus(t, store, submission(1), pipeline.RecordSent)
	})

	t.Run("it keeps the prior reason for a rejected identity", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		store := newMockStore()
		store.preload(pipeline.ProcessedRecord{
			Identity: submission(1).Identity(),
			Address:  address(1),
			Status:   pipeline.RecordRejected,
			Reason:   pipeline.ReasonAccountNotFound,
		})
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusRejected, result.Status)
		assert.Equal(t, pipeline.ReasonAccountNotFound, result.Reason)
	})

	t.Run("it retries transient lookup failures before approving", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		network.existsFailures = 2
		store := newMockStore()
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusApproved, result.Status)
	})

	t.Run("it rejects when lookups keep failing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		network.existsFailures = 10
		store := newMockStore()
		validator := newTestValidator(network, store)

		// Act
		result, err := validator.Validate(t.Context(), submission(1))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusRejected, result.Status)
		assert.Contains(t, result.Reason, "account lookup failed")
	})

	t.Run("it surfaces state tracker failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		network := newMockNetwork()
		store := newMockStore()
		store.recordErr = assert.AnError
		validator := newTestValidator(network, store)

		// Act
		_, err := validator.Validate(t.Context(), submission(1))

		// Assert
		assert.ErrorIs(t, err, pipeline.ErrStateTrackerFailed)
	})
}

// Test setup helpers

func newTestValidator(network *mockNetwork, store *mockStore) *pipeline.Validator {
	return pipeline.NewValidator(network, store,
		pipeline.WithValidatorClock(instantClock{}),
		pipeline.WithValidatorRetry(retry.Policy{Attempts: 3, Clock: instantClock{}}),
	)
}

// Domain-specific assertions

func assertRecordedStatus(t *testing.T, store *mockStore, sub pipeline.Submission, expected pipeline.RecordStatus) {
	t.Helper()
	rec, ok := store.record(sub.Identity())
	require.True(t, ok, "Expected a record for %s", sub.Address)
	assert.Equal(t, expected, rec.Status, "Record for %s should be %s", sub.Address, expected)
	assert.Equal(t, sub.Address, rec.Address)
}
