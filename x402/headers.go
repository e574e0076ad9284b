package x402

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// x402 HTTP header names.
const (
	HeaderPrice          = "X-Price"
	HeaderPayTo          = "X-Pay-To"
	HeaderInvoiceID      = "X-Invoice-Id"
	HeaderExpiry         = "X-Expiry"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// PaymentHeaders holds the x402 headers of a 402 response.
type PaymentHeaders struct {
	Price     uint64 // satoshis
	PayTo     string
	InvoiceID string
	Expiry    int64 // Unix timestamp
}

// IsExpired reports whether the payment request has passed its expiry.
func (h *PaymentHeaders) IsExpired(now time.Time) bool {
	return now.Unix() > h.Expiry
}

// SetPaymentHeaders sets x402 headers on an HTTP response.
// Also sets the status code to 402 Payment Required.
func SetPaymentHeaders(w http.ResponseWriter, headers *PaymentHeaders) {
	w.Header().Set(HeaderPrice, strconv.FormatUint(headers.Price, 10))
	w.Header().Set(HeaderPayTo, headers.PayTo)
	w.Header().Set(HeaderInvoiceID, headers.InvoiceID)
	w.Header().Set(HeaderExpiry, strconv.FormatInt(headers.Expiry, 10))
	w.WriteHeader(http.StatusPaymentRequired)
}

// ParsePaymentHeaders extracts x402 headers from an HTTP response.
func ParsePaymentHeaders(resp *http.Response) (*PaymentHeaders, error) {
	priceStr := resp.Header.Get(HeaderPrice)
	if priceStr == "" {
		return nil, fmt.Errorf("%w: %s header missing", ErrMissingHeaders, HeaderPrice)
	}

	price, err := strconv.ParseUint(priceStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value: %w", ErrMissingHeaders, HeaderPrice, err)
	}

	payTo := resp.Header.Get(HeaderPayTo)
	if payTo == "" {
		return nil, fmt.Errorf("%w: %s header missing", ErrMissingHeaders, HeaderPayTo)
	}

	invoiceID := resp.Header.Get(HeaderInvoiceID)
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: %s header missing", ErrMissingHeaders, HeaderInvoiceID)
	}

	expiryStr := resp.Header.Get(HeaderExpiry)
	if expiryStr == "" {
		return nil, fmt.Errorf("%w: %s header missing", ErrMissingHeaders, HeaderExpiry)
	}

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value: %w", ErrMissingHeaders, HeaderExpiry, err)
	}

	return &PaymentHeaders{
		Price:     price,
		PayTo:     payTo,
		InvoiceID: invoiceID,
		Expiry:    expiry,
	}, nil
}

// PaymentRequiredError is returned when the facilitator demands payment
// before it will settle. It matches ErrPaymentRequired with errors.Is.
type PaymentRequiredError struct {
	Headers *PaymentHeaders // nil when the 402 response carried no usable headers
}

func (e *PaymentRequiredError) Error() string {
	if e.Headers == nil {
		return ErrPaymentRequired.Error()
	}
	return fmt.Sprintf("%s: %d satoshis to %s (invoice %s)",
		ErrPaymentRequired, e.Headers.Price, e.Headers.PayTo, e.Headers.InvoiceID)
}

func (e *PaymentRequiredError) Unwrap() error {
	return ErrPaymentRequired
}
