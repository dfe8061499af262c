package pipeline_test

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-build/ogc-pipeline/pipeline"
)

// TestPayoutPolicy tests payout amount selection
func TestPayoutPolicy(t *testing.T) {
	t.Parallel()

	t.Run("it rejects a negative minimum", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewPayoutPolicy(decimal.RequireFromString("-1"), decimal.RequireFromString("3"), nil)

		assert.ErrorIs(t, err, pipeline.ErrInvalidPayoutBounds)
	})

	t.Run("it rejects a maximum below the minimum", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewPayoutPolicy(decimal.RequireFromString("3"), decimal.RequireFromString("1"), nil)

		assert.ErrorIs(t, err, pipeline.ErrInvalidPayoutBounds)
	})

	t.Run("it pays a fixed amount when the bounds are equal", func(t *testing.T) {
		t.Parallel()

		policy, err := pipeline.NewPayoutPolicy(decimal.RequireFromString("2"), decimal.RequireFromString("2"), nil)
		require.NoError(t, err)

		for range 10 {
			assert.True(t, policy.Next().Equal(decimal.RequireFromString("2")))
		}
	})

	t.Run("it pays within the bounds at two decimal places", func(t *testing.T) {
		t.Parallel()

		minAmount := decimal.RequireFromString("1")
		maxAmount := decimal.RequireFromString("3")
		rng := rand.New(rand.NewPCG(1, 2))
		policy, err := pipeline.NewPayoutPolicy(minAmount, maxAmount, rng)
		require.NoError(t, err)

		for range 100 {
			amount := policy.Next()
			assert.True(t, amount.GreaterThanOrEqual(minAmount), "amount %s below minimum", amount)
			assert.True(t, amount.LessThanOrEqual(maxAmount), "amount %s above maximum", amount)
			assert.GreaterOrEqual(t, amount.Exponent(), int32(-2), "amount %s has more than 2 decimal places", amount)
		}
	})
}
