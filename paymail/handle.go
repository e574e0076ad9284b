// Package paymail resolves paymail handles (alias@domain) to P2PKH
// addresses so royalty shares can be paid to people rather than raw
// addresses.
//
// Resolution follows the bsvalias protocol: the host is found through the
// _bsvalias._tcp SRV record, capabilities are read from
// .well-known/bsvalias, and the P2P payment destination endpoint supplies
// the output script. Resolved addresses are kept in a cache.Cache.
package paymail

import (
	"fmt"
	"strings"
)

// Handle is a parsed paymail handle.
type Handle struct {
	Alias  string
	Domain string
}

// String returns the canonical alias@domain form.
func (h Handle) String() string {
	return h.Alias + "@" + h.Domain
}

// IsHandle reports whether s looks like a paymail handle rather than an address.
func IsHandle(s string) bool {
	_, err := ParseHandle(s)
	return err == nil
}

// ParseHandle splits alias@domain. Both parts are lower-cased and the
// domain must contain a dot.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	alias, domain, ok := strings.Cut(s, "@")
	if !ok || alias == "" || domain == "" {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	if strings.ContainsAny(alias, " /@") || strings.ContainsAny(domain, " /@:") {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return Handle{}, fmt.Errorf("%w: domain %q", ErrInvalidHandle, domain)
	}
	return Handle{
		Alias:  strings.ToLower(alias),
		Domain: strings.ToLower(domain),
	}, nil
}
