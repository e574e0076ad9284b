package paymail

import "errors"

var (
	// ErrInvalidHandle indicates the recipient is not an alias@domain handle.
	ErrInvalidHandle = errors.New("paymail: invalid handle")

	// ErrDNSLookupFailed indicates a DNS SRV lookup failed.
	ErrDNSLookupFailed = errors.New("paymail: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("paymail: DNSSEC validation failed")

	// ErrNoEndpoints indicates no SRV records were found for the domain.
	ErrNoEndpoints = errors.New("paymail: no endpoints found")

	// ErrPaymailDiscovery indicates .well-known/bsvalias fetch failed.
	ErrPaymailDiscovery = errors.New("paymail: capability discovery failed")

	// ErrAddressResolution indicates the P2P payment destination resolution failed.
	ErrAddressResolution = errors.New("paymail: address resolution failed")

	// ErrUnsupportedScript indicates no destination output is a P2PKH script.
	ErrUnsupportedScript = errors.New("paymail: no P2PKH output script")
)
