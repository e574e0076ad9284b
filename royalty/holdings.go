package royalty

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Shareholding is a recipient's count of share units in an asset.
type Shareholding struct {
	RecipientAddress string `json:"recipientAddress"`
	RecipientName    string `json:"recipientName"`
	Units            uint64 `json:"units"`
	Role             Role   `json:"role"`
}

// SplitsFromShares converts share units into a percentage split table.
// Each percentage is truncated to places decimal places and the last holder
// gets the remainder, so the table always sums to exactly 100.
func SplitsFromShares(holdings []Shareholding, places int32) ([]RoyaltySplit, error) {
	if len(holdings) == 0 {
		return nil, ErrNoShares
	}
	if places < 0 {
		places = 0
	}

	var total uint64
	for i, h := range holdings {
		if strings.TrimSpace(h.RecipientAddress) == "" {
			return nil, fmt.Errorf("%w: holding %d", ErrEmptyRecipient, i)
		}
		if h.Units == 0 {
			return nil, fmt.Errorf("%w: holding %d (%s)", ErrZeroShares, i, h.RecipientAddress)
		}
		if total+h.Units < total {
			return nil, fmt.Errorf("%w: share units overflow", ErrInvalidAmount)
		}
		total += h.Units
	}
	totalDec := fromUint64(total)

	splits := make([]RoyaltySplit, len(holdings))
	allocated := zero
	for i, h := range holdings {
		pct := hundred.Sub(allocated)
		if i < len(holdings)-1 {
			pct = fromUint64(h.Units).Mul(hundred).Div(totalDec).Truncate(places)
			allocated = allocated.Add(pct)
		}
		splits[i] = RoyaltySplit{
			RecipientAddress: h.RecipientAddress,
			RecipientName:    h.RecipientName,
			Percentage:       pct,
			Role:             h.Role,
		}
	}
	if err := ValidateSplits(splits); err != nil {
		return nil, err
	}
	return splits, nil
}

func fromUint64(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}
