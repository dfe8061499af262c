package pipeline

import (
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Sentinel errors for payout policy construction
var (
	ErrInvalidPayoutBounds = errors.New("invalid payout bounds")
)

// AmountPolicy yields the payout amount for the next recipient.
// ------------------------------------------------------------
type AmountPolicy interface {
	Next() decimal.Decimal
}

// FixedAmount pays every recipient the same amount.
type FixedAmount struct {
	Amount decimal.Decimal
}

func (f FixedAmount) Next() decimal.Decimal { return f.Amount }

// RandomAmount pays a uniformly random amount within [Min, Max], quantized
// to 2 decimal places.
type RandomAmount struct {
	Min decimal.Decimal
	Max decimal.Decimal
	rng *rand.Rand
}

func (r RandomAmount) Next() decimal.Decimal {
	span := r.Max.Sub(r.Min)
	offset := span.Mul(decimal.NewFromFloat(r.rng.Float64()))
	return r.Min.Add(offset).Round(2)
}

// NewPayoutPolicy builds the policy for the configured bounds: fixed when
// min equals max, randomized-within-bounds otherwise.
func NewPayoutPolicy(min, max decimal.Decimal, rng *rand.Rand) (AmountPolicy, error) {
	switch {
	case min.IsNegative():
		return nil, errors.Join(ErrInvalidPayoutBounds, errors.New("minimum amount is negative"))
	case max.LessThan(min):
		return nil, errors.Join(ErrInvalidPayoutBounds, errors.New("maximum amount below minimum"))
	case min.Equal(max):
		return FixedAmount{Amount: min}, nil
	default:
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		return RandomAmount{Min: min, Max: max, rng: rng}, nil
	}
}
