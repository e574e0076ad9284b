// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.FacilitatorURL != "" {
		u, err := url.Parse(cfg.FacilitatorURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFacilitatorURL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidFacilitatorURL, cfg.FacilitatorURL)
		}
	}

	if cfg.FacilitatorTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if cfg.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if cfg.CacheTTL < 0 {
		return ErrInvalidCacheTTL
	}

	for name, addr := range map[string]string{"redis_addr": cfg.RedisAddr, "dnssec_upstream": cfg.DNSSECUpstream} {
		if addr == "" {
			continue
		}
		if err := validateAddr(addr); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidAddr, name, err)
		}
	}

	for _, broker := range cfg.KafkaBrokers {
		if err := validateAddr(broker); err != nil {
			return fmt.Errorf("%w: kafka broker: %w", ErrInvalidAddr, err)
		}
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
