// Package x402 talks to an x402 payment facilitator.
//
// A facilitator moves funds on behalf of its caller: the client posts a
// settlement request, the facilitator pays the destination and answers with
// the transaction hash. A facilitator that wants to be paid first answers
// 402 Payment Required with structured headers. Settlements in BSV can be
// checked against the raw transaction the facilitator returns.
package x402

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyBSV is the currency whose settlements can be verified on chain.
const CurrencyBSV = "BSV"

// satoshisPerCoin converts a BSV amount to satoshis.
var satoshisPerCoin = decimal.NewFromInt(100_000_000)

// SettlementRequest is the body of a settle call.
type SettlementRequest struct {
	ID                 string          `json:"id"`
	DestinationAddress string          `json:"destination_address"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Description        string          `json:"description,omitempty"`
	AssetID            string          `json:"asset_id,omitempty"`
}

// SettlementResponse is the facilitator's answer to a settle call.
type SettlementResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Error           string `json:"error,omitempty"`
	RawTx           string `json:"raw_tx,omitempty"` // hex, BSV settlements only
}

// NewSettlementRequest creates a request with a fresh random ID.
func NewSettlementRequest(destination string, amount decimal.Decimal, currency, description, assetID string) *SettlementRequest {
	return &SettlementRequest{
		ID:                 uuid.NewString(),
		DestinationAddress: destination,
		Amount:             amount,
		Currency:           currency,
		Description:        description,
		AssetID:            assetID,
	}
}

// Validate checks the fields the facilitator requires.
func (r *SettlementRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidParams)
	}
	if strings.TrimSpace(r.DestinationAddress) == "" {
		return fmt.Errorf("%w: empty destination", ErrInvalidParams)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidParams, r.Amount)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidParams)
	}
	return nil
}

// ToSatoshis converts a BSV amount to satoshis, rounding up so a
// verified output is never short of the requested amount.
func ToSatoshis(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrInvalidParams, amount)
	}
	sats := amount.Mul(satoshisPerCoin).Ceil().BigInt()
	if !sats.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s out of range", ErrInvalidParams, amount)
	}
	return sats.Uint64(), nil
}
