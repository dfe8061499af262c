package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors for fund allocator configuration
var (
	ErrInvalidContributionRate = errors.New("contribution rate must be between 0 and 1")
	ErrInvalidCategorySplit    = errors.New("invalid category split")
	ErrNegativeGrossAmount     = errors.New("gross amount must not be negative")
)

// payableScale is the token's smallest payable unit: 7 decimal places.
// All fund amounts are quantized to this scale, contribution rounding is
// half-even, and category remainders are settled by largest remainder.
const payableScale = 7

// Category is one named slice of the contribution fund.
type Category struct {
	Name     string
	Fraction decimal.Decimal
}

// CategoryAmount is the computed amount for one category.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// FundAllocation partitions the contribution computed from one run's gross
// distributed amount across the configured categories.
type FundAllocation struct {
	GrossAmount      decimal.Decimal
	ContributionRate decimal.Decimal
	Contribution     decimal.Decimal
	Categories       []CategoryAmount
}

// ParseCategorySplit parses "name:fraction,name:fraction,..." preserving
// order.
func ParseCategorySplit(spec string) ([]Category, error) {
	parts := strings.Split(spec, ",")
	categories := make([]Category, 0, len(parts))
	for _, part := range parts {
		name, fraction, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategorySplit, part)
		}
		f, err := decimal.NewFromString(fraction)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCategorySplit, part, err)
		}
		categories = append(categories, Category{Name: name, Fraction: f})
	}
	return categories, nil
}

// FundAllocator computes the contribution fund split. Pure; all validation
// happens at construction so a bad split fails at startup, not mid-run.
// ----------------------------------------------------------------------
type FundAllocator struct {
	rate       decimal.Decimal
	categories []Category
}

// NewFundAllocator validates the rate and the split: every fraction must be
// non-negative and the fractions must sum to exactly 1.
func NewFundAllocator(rate decimal.Decimal, categories []Category) (*FundAllocator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidContributionRate, rate)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCategorySplit)
	}

	sum := decimal.Zero
	for _, c := range categories {
		if c.Fraction.IsNegative() {
			return nil, fmt.Errorf("%w: category %q has negative fraction", ErrInvalidCategorySplit, c.Name)
		}
		sum = sum.Add(c.Fraction)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: fractions sum to %s, want 1", ErrInvalidCategorySplit, sum)
	}

	return &FundAllocator{rate: rate, categories: categories}, nil
}

// Allocate computes the contribution for the gross distributed amount and
// partitions it across the categories. Category amounts always sum exactly
// to the contribution: each category is floored to the payable unit, then
// the leftover units go to the categories with the largest remainders
// (ties broken by configured order).
func (a *FundAllocator) Allocate(gross decimal.Decimal) (FundAllocation, error) {
	if gross.IsNegative() {
		return FundAllocation{}, fmt.Errorf("%w: got %s", ErrNegativeGrossAmount, gross)
	}

	contribution := gross.Mul(a.rate).RoundBank(payableScale)

	amounts := make([]CategoryAmount, len(a.categories))
	remainders := make([]decimal.Decimal, len(a.categories))
	floored := decimal.Zero
	for i, c := range a.categories {
		raw := contribution.Mul(c.Fraction)
		amount := raw.Truncate(payableScale)
		amounts[i] = CategoryAmount{Name: c.Name, Amount: amount}
		remainders[i] = raw.Sub(amount)
		floored = floored.Add(amount)
	}

	// Largest-remainder settlement of the leftover payable units.
	leftoverUnits := contribution.Sub(floored).Shift(payableScale).IntPart()
	order := make([]int, len(a.categories))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return remainders[order[x]].GreaterThan(remainders[order[y]])
	})

	unit := decimal.New(1, -payableScale)
	for k := int64(0); k < leftoverUnits; k++ {
		idx := order[k%int64(len(order))]
		amounts[idx].Amount = amounts[idx].Amount.Add(unit)
	}

	return FundAllocation{
		GrossAmount:      gross,
		ContributionRate: a.rate,
		Contribution:     contribution,
		Categories:       amounts,
	}, nil
}
