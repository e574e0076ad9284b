package x402

import "errors"

var (
	// ErrPaymentRequired indicates the facilitator answered 402 Payment Required.
	ErrPaymentRequired = errors.New("x402: payment required")

	// ErrFacilitatorUnavailable indicates the facilitator could not be reached
	// or answered with an unexpected HTTP status.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator unavailable")

	// ErrSettlementRejected indicates the facilitator refused the settlement.
	ErrSettlementRejected = errors.New("x402: settlement rejected")

	// ErrInvalidResponse indicates the facilitator returned a malformed response.
	ErrInvalidResponse = errors.New("x402: invalid response")

	// ErrInsufficientPayment indicates the transaction output amount is less than required.
	ErrInsufficientPayment = errors.New("x402: insufficient payment amount")

	// ErrTxIDMismatch indicates the settlement transaction does not hash to the reported ID.
	ErrTxIDMismatch = errors.New("x402: transaction ID mismatch")

	// ErrInvalidTx indicates the raw transaction cannot be deserialized.
	ErrInvalidTx = errors.New("x402: invalid transaction")

	// ErrNoMatchingOutput indicates no transaction output pays the destination.
	ErrNoMatchingOutput = errors.New("x402: no matching output found")

	// ErrInvalidParams indicates one or more parameters are invalid.
	ErrInvalidParams = errors.New("x402: invalid parameters")

	// ErrMissingHeaders indicates required x402 payment headers are missing.
	ErrMissingHeaders = errors.New("x402: missing payment headers")
)
