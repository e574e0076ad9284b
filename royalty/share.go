package royalty

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// ComputeShare returns total * percentage / 100.
// The total must be non-negative and the percentage within [0, 100].
func ComputeShare(total, percentage decimal.Decimal) (decimal.Decimal, error) {
	if total.IsNegative() {
		return zero, fmt.Errorf("%w: negative total %s", ErrInvalidAmount, total)
	}
	if err := checkPercentage(percentage); err != nil {
		return zero, err
	}
	return total.Mul(percentage).Div(hundred), nil
}

func checkPercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage %s outside [0, 100]", ErrInvalidAmount, p)
	}
	return nil
}

// TotalPercentage sums the percentages of all splits.
func TotalPercentage(splits []RoyaltySplit) decimal.Decimal {
	sum := zero
	for _, s := range splits {
		sum = sum.Add(s.Percentage)
	}
	return sum
}
