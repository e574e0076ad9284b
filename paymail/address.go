package paymail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bsv-blockchain/go-sdk/script"
)

// PaymentOutput represents a single output in a P2P payment destination response.
type PaymentOutput struct {
	Script   string `json:"script"`
	Satoshis uint64 `json:"satoshis"`
}

// paymentDestinationRequest is the body posted to the destination endpoint.
type paymentDestinationRequest struct {
	Satoshis   uint64 `json:"satoshis"`
	SenderName string `json:"senderName,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
}

// paymentDestinationResponse covers both the P2P form (outputs) and the
// basic form (a single output script).
type paymentDestinationResponse struct {
	Outputs []PaymentOutput `json:"outputs"`
	Output  string          `json:"output"`
}

// ResolvePaymentDestination POSTs to the payment destination endpoint built
// from template and returns the output scripts to pay.
func ResolvePaymentDestination(ctx context.Context, client HTTPDoer, template string, h Handle, senderName string) ([]PaymentOutput, error) {
	if template == "" {
		return nil, fmt.Errorf("%w: no payment destination capability for %s", ErrAddressResolution, h.Domain)
	}

	// Escape variables to prevent path traversal.
	destURL := strings.ReplaceAll(template, "{alias}", url.PathEscape(h.Alias))
	destURL = strings.ReplaceAll(destURL, "{domain.tld}", url.PathEscape(h.Domain))

	body, err := json.Marshal(paymentDestinationRequest{SenderName: senderName, Purpose: "royalty"})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrAddressResolution, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrAddressResolution, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %w", ErrAddressResolution, destURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: POST %s returned status %d", ErrAddressResolution, destURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxPaymailResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrAddressResolution, err)
	}

	var destResp paymentDestinationResponse
	if err := json.Unmarshal(raw, &destResp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", ErrAddressResolution, err)
	}

	outputs := destResp.Outputs
	if len(outputs) == 0 && destResp.Output != "" {
		outputs = []PaymentOutput{{Script: destResp.Output}}
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs in response", ErrAddressResolution)
	}

	return outputs, nil
}

// ScriptToAddress converts a hex P2PKH locking script to its address.
func ScriptToAddress(scriptHex string, mainnet bool) (string, error) {
	s, err := script.NewFromHex(scriptHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid script hex: %w", ErrUnsupportedScript, err)
	}
	if !s.IsP2PKH() {
		return "", ErrUnsupportedScript
	}
	pkh, err := s.PublicKeyHash()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedScript, err)
	}
	addr, err := script.NewAddressFromPublicKeyHash(pkh, mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: address from hash: %w", ErrUnsupportedScript, err)
	}
	return addr.AddressString, nil
}

// AddressFromOutputs returns the address of the first P2PKH output.
func AddressFromOutputs(outputs []PaymentOutput, mainnet bool) (string, error) {
	for _, out := range outputs {
		addr, err := ScriptToAddress(out.Script, mainnet)
		if err == nil {
			return addr, nil
		}
	}
	return "", ErrUnsupportedScript
}
