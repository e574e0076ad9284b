package paymail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bitfsorg/royalty-go/cache"
)

const (
	// DefaultCacheTTL is how long a resolved address is reused.
	DefaultCacheTTL = time.Hour

	defaultSenderName = "royalty-go"
)

// Resolver turns recipients into payable addresses. It owns its cache and
// is meant to live as long as the process. It is safe for concurrent use.
type Resolver struct {
	dns        DNSResolver
	http       HTTPDoer
	cache      cache.Cache
	ttl        time.Duration
	network    string
	scheme     string
	senderName string
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDNSResolver sets the SRV resolver, e.g. a DNSSECResolver.
func WithDNSResolver(d DNSResolver) Option {
	return func(r *Resolver) { r.dns = d }
}

// WithHTTPClient sets the client used for discovery and destination calls.
func WithHTTPClient(c HTTPDoer) Option {
	return func(r *Resolver) { r.http = c }
}

// WithCache sets the cache of resolved addresses.
func WithCache(c cache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithTTL sets how long resolved addresses are cached.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithNetwork selects "mainnet" or "testnet" address encoding.
func WithNetwork(network string) Option {
	return func(r *Resolver) { r.network = network }
}

// WithSenderName sets the senderName sent to destination endpoints.
func WithSenderName(name string) Option {
	return func(r *Resolver) { r.senderName = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver with an in-memory cache by default.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		dns:        DefaultDNSResolver,
		http:       &http.Client{Timeout: 30 * time.Second},
		cache:      cache.NewMemCache(),
		ttl:        DefaultCacheTTL,
		network:    "mainnet",
		scheme:     "https",
		senderName: defaultSenderName,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CacheKey returns the cache key for a handle on network.
func CacheKey(network string, h Handle) string {
	return "recipient:" + network + ":" + h.String()
}

// Resolve returns the address to pay for recipient. Anything that is not a
// paymail handle is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, recipient string) (string, error) {
	h, err := ParseHandle(recipient)
	if err != nil {
		return recipient, nil
	}

	key := CacheKey(r.network, h)
	if addr, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("recipient cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return addr, nil
	}

	addr, p2p, err := r.resolveHandle(ctx, h)
	if err != nil {
		return "", err
	}

	// P2P outputs are issued per payment and must not be reused.
	if !p2p {
		if err := r.cache.Set(ctx, key, addr, r.ttl); err != nil {
			r.logger.Warn("recipient cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	r.logger.Debug("paymail resolved",
		zap.String("handle", h.String()),
		zap.String("address", addr),
		zap.Bool("p2p", p2p),
	)
	return addr, nil
}

// Forget drops a cached resolution, e.g. after a payment to it was refused.
func (r *Resolver) Forget(ctx context.Context, recipient string) error {
	h, err := ParseHandle(recipient)
	if err != nil {
		return nil
	}
	return r.cache.Delete(ctx, CacheKey(r.network, h))
}

// resolveHandle reports whether the address came from a P2P destination.
func (r *Resolver) resolveHandle(ctx context.Context, h Handle) (string, bool, error) {
	host := endpointFor(ctx, r.dns, h.Domain)

	caps, err := DiscoverCapabilities(ctx, r.http, r.scheme, host)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrAddressResolution, h, err)
	}

	outputs, err := ResolvePaymentDestination(ctx, r.http, caps.PaymentDestination, h, r.senderName)
	if err != nil {
		return "", false, err
	}

	addr, err := AddressFromOutputs(outputs, r.network != "testnet")
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrAddressResolution, h, err)
	}
	return addr, caps.P2P, nil
}
