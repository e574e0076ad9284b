package paymail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPDoer defines the interface for HTTP requests.
// This allows tests to mock HTTP calls; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MaxPaymailResponseSize bounds every paymail response body.
const MaxPaymailResponseSize = 1 << 20

// Known paymail capability IDs.
const (
	capP2PPaymentDestination = "2a40af698840"
	capPaymentDestination    = "paymentDestination"
)

// Capabilities holds discovered paymail server capabilities.
type Capabilities struct {
	BSVAlias           string
	PaymentDestination string // URL template with {alias} and {domain.tld}
	P2P                bool   // PaymentDestination hands out a fresh output per call
}

// wellKnownResponse represents the JSON structure of .well-known/bsvalias.
type wellKnownResponse struct {
	BSVAlias     string         `json:"bsvalias"`
	Capabilities map[string]any `json:"capabilities"`
}

// DiscoverCapabilities fetches .well-known/bsvalias from host (host:port)
// and returns the paymail server capabilities.
func DiscoverCapabilities(ctx context.Context, client HTTPDoer, scheme, host string) (*Capabilities, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrPaymailDiscovery)
	}

	url := scheme + "://" + host + "/.well-known/bsvalias"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrPaymailDiscovery, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrPaymailDiscovery, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrPaymailDiscovery, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPaymailResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrPaymailDiscovery, err)
	}

	var wk wellKnownResponse
	if err := json.Unmarshal(body, &wk); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrPaymailDiscovery, err)
	}

	caps := &Capabilities{BSVAlias: wk.BSVAlias}
	var basic string
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		switch {
		case key == capP2PPaymentDestination || strings.HasSuffix(key, "p2p-payment-destination"):
			caps.PaymentDestination = urlStr
			caps.P2P = true
		case key == capPaymentDestination:
			basic = urlStr
		}
	}
	if caps.PaymentDestination == "" {
		caps.PaymentDestination = basic
	}

	return caps, nil
}
