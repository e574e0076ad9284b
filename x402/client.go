package x402

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single settle call.
const DefaultTimeout = 5 * time.Minute

// ClientConfig holds facilitator connection parameters.
type ClientConfig struct {
	URL     string        // facilitator base URL
	Token   string        // bearer token; omitted when empty
	Timeout time.Duration // zero means DefaultTimeout

	// VerifyBSV checks the raw transaction of BSV settlements against the
	// request before reporting success.
	VerifyBSV bool
}

// Client settles payments through an x402 facilitator.
// It is safe for concurrent use.
type Client struct {
	url       string
	token     string
	verifyBSV bool
	client    *http.Client
	logger    *zap.Logger
}

// NewClient creates a facilitator client with a pooled HTTP transport.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: empty facilitator URL", ErrInvalidParams)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:       strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
		verifyBSV: cfg.VerifyBSV,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		logger: logger,
	}, nil
}

// Settle posts req to the facilitator's settle endpoint.
//
// idempotencyKey is sent as X-Idempotency-Key so a repeated call for the
// same share cannot pay twice. A 402 answer returns a *PaymentRequiredError,
// other non-2xx answers ErrFacilitatorUnavailable, and a response with
// success=false ErrSettlementRejected carrying the facilitator's message.
func (c *Client) Settle(ctx context.Context, req *SettlementRequest, idempotencyKey string) (*SettlementResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("x402: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("x402: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFacilitatorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusPaymentRequired {
		headers, herr := ParsePaymentHeaders(resp)
		if herr != nil {
			c.logger.Warn("402 response without usable payment headers", zap.Error(herr))
		}
		return nil, &PaymentRequiredError{Headers: headers}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrFacilitatorUnavailable, resp.StatusCode, string(respBody))
	}

	var out SettlementResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "no reason given"
		}
		return &out, fmt.Errorf("%w: %s", ErrSettlementRejected, msg)
	}
	if out.TransactionHash == "" {
		return &out, fmt.Errorf("%w: success without transaction hash", ErrInvalidResponse)
	}

	if c.verifyBSV && strings.EqualFold(req.Currency, CurrencyBSV) && out.RawTx != "" {
		if err := verifyResponse(req, &out); err != nil {
			return &out, err
		}
		c.logger.Debug("settlement transaction verified",
			zap.String("request_id", req.ID),
			zap.String("tx_hash", out.TransactionHash),
		)
	}
	return &out, nil
}

func verifyResponse(req *SettlementRequest, out *SettlementResponse) error {
	raw, err := hex.DecodeString(out.RawTx)
	if err != nil {
		return fmt.Errorf("%w: raw_tx is not hex: %w", ErrInvalidTx, err)
	}
	sats, err := ToSatoshis(req.Amount)
	if err != nil {
		return err
	}
	_, err = VerifySettlementTx(raw, req.DestinationAddress, sats, out.TransactionHash)
	return err
}
