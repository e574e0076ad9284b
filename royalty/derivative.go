package royalty

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ComposeDerivative builds the split table for a derivative work.
//
// The parent work's recipients receive parentShare percent of every payout,
// divided according to their own splits; the derivative's recipients share
// the remainder. Both input tables must be fully allocated. A recipient
// present in both tables is merged into its derivative entry.
func ComposeDerivative(child, parent []RoyaltySplit, parentShare decimal.Decimal) ([]RoyaltySplit, error) {
	if err := checkPercentage(parentShare); err != nil {
		return nil, fmt.Errorf("parent share: %w", err)
	}
	if err := ValidateSplits(child); err != nil {
		return nil, fmt.Errorf("derivative splits: %w", err)
	}
	if err := ValidateSplits(parent); err != nil {
		return nil, fmt.Errorf("parent splits: %w", err)
	}
	if len(parent) == 0 && !parentShare.IsZero() {
		return nil, fmt.Errorf("%w: parent share %s with no parent splits", ErrAllocationMismatch, parentShare)
	}
	if len(child) == 0 && !parentShare.Equal(hundred) {
		return nil, fmt.Errorf("%w: no derivative splits for remaining %s", ErrAllocationMismatch, hundred.Sub(parentShare))
	}

	childShare := hundred.Sub(parentShare)
	out := make([]RoyaltySplit, 0, len(child)+len(parent))
	for _, s := range child {
		s.Percentage = s.Percentage.Mul(childShare).Div(hundred)
		out = append(out, s)
	}
	pos := make(map[string]int, len(out))
	for i, s := range out {
		pos[s.RecipientAddress] = i
	}
	for _, s := range parent {
		s.Percentage = s.Percentage.Mul(parentShare).Div(hundred)
		if i, ok := pos[s.RecipientAddress]; ok {
			out[i].Percentage = out[i].Percentage.Add(s.Percentage)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
