package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CrossRateCalculator derives any-to-any pair rates from an anchor-relative
// rate table. Pure computation, no I/O.
type CrossRateCalculator struct {
	anchor string
}

// NewCrossRateCalculator creates a calculator pivoting on the given anchor
// currency.
func NewCrossRateCalculator(anchor string) *CrossRateCalculator {
	return &CrossRateCalculator{anchor: anchor}
}

// Anchor returns the pivot currency code.
func (c *CrossRateCalculator) Anchor() string {
	return c.anchor
}

// Calculate returns the (from, to) rate from an anchor-relative table.
// Results are rounded to six decimal places, half up.
func (c *CrossRateCalculator) Calculate(table map[string]decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if from == c.anchor {
		toRate, ok := table[to]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingRateData, to)
		}
		return toRate.Round(RateScale), nil
	}

	fromRate, ok := table[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingRateData, from)
	}
	if fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: zero rate for %s", ErrMissingRateData, from)
	}

	if to == c.anchor {
		return decimal.NewFromInt(1).DivRound(fromRate, RateScale), nil
	}

	toRate, ok := table[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingRateData, to)
	}
	return toRate.DivRound(fromRate, RateScale), nil
}
