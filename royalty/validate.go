package royalty

import (
	"fmt"
	"strings"
)

// ValidateSplits checks each split's recipient and percentage, rejects
// duplicate recipients, and requires the percentages to sum to exactly 100.
// An empty slice is valid: there is nothing to pay.
func ValidateSplits(splits []RoyaltySplit) error {
	if len(splits) == 0 {
		return nil
	}
	seen := make(map[string]int, len(splits))
	for i, s := range splits {
		addr := strings.TrimSpace(s.RecipientAddress)
		if addr == "" {
			return fmt.Errorf("%w: split %d", ErrEmptyRecipient, i)
		}
		if j, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %s in splits %d and %d", ErrDuplicateRecipient, addr, j, i)
		}
		seen[addr] = i
		if err := checkPercentage(s.Percentage); err != nil {
			return fmt.Errorf("split %d: %w", i, err)
		}
	}
	if sum := TotalPercentage(splits); !sum.Equal(hundred) {
		return fmt.Errorf("%w: got %s", ErrAllocationMismatch, sum)
	}
	return nil
}

// validateDistribution checks the fields every distribution needs before
// any settlement is attempted.
func validateDistribution(d *RoyaltyDistribution) error {
	if d == nil {
		return fmt.Errorf("%w: nil distribution", ErrInvalidDistribution)
	}
	if strings.TrimSpace(d.Currency) == "" && len(d.Splits) > 0 {
		return fmt.Errorf("%w: currency is required", ErrInvalidDistribution)
	}
	return nil
}

// VerifyResult checks that res accounts for every split of d exactly once,
// in order, and that each transaction amount matches a recomputed share.
func VerifyResult(d *RoyaltyDistribution, res *DistributionResult) error {
	if d == nil || res == nil {
		return fmt.Errorf("%w: nil distribution or result", ErrResultMismatch)
	}
	if got, want := len(res.Transactions)+len(res.Errors), len(d.Splits); got != want {
		return fmt.Errorf("%w: %d outcomes for %d splits", ErrResultMismatch, got, want)
	}
	if res.Success != (len(res.Errors) == 0) {
		return fmt.Errorf("%w: success=%t with %d errors", ErrResultMismatch, res.Success, len(res.Errors))
	}

	seen := make([]bool, len(d.Splits))
	claim := func(idx, last int, recipient string) error {
		if err := checkOutcome(d, idx, recipient); err != nil {
			return err
		}
		if idx <= last {
			return fmt.Errorf("%w: split %d out of order", ErrResultMismatch, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: split %d has two outcomes", ErrResultMismatch, idx)
		}
		seen[idx] = true
		return nil
	}

	last := -1
	for _, tx := range res.Transactions {
		if err := claim(tx.SplitIndex, last, tx.Recipient); err != nil {
			return err
		}
		last = tx.SplitIndex
		s := d.Splits[tx.SplitIndex]
		expected, err := ComputeShare(d.TotalAmount, s.Percentage)
		if err != nil {
			return fmt.Errorf("%w: split %d paid despite %v", ErrResultMismatch, tx.SplitIndex, err)
		}
		if !tx.Amount.Equal(expected) {
			return fmt.Errorf("%w: split %d amount %s != expected %s",
				ErrResultMismatch, tx.SplitIndex, tx.Amount, expected)
		}
	}
	last = -1
	for _, e := range res.Errors {
		if err := claim(e.SplitIndex, last, e.Recipient); err != nil {
			return err
		}
		last = e.SplitIndex
	}
	return nil
}
