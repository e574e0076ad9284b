// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\" or \"testnet\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidFacilitatorURL indicates the facilitator URL is not an absolute http(s) URL.
	ErrInvalidFacilitatorURL = errors.New("config: invalid facilitator URL")

	// ErrInvalidTimeout indicates a non-positive facilitator timeout.
	ErrInvalidTimeout = errors.New("config: facilitator timeout must be positive")

	// ErrInvalidConcurrency indicates a concurrency below 1.
	ErrInvalidConcurrency = errors.New("config: concurrency must be at least 1")

	// ErrInvalidAddr indicates a Redis, DNS or Kafka address is not host:port.
	ErrInvalidAddr = errors.New("config: invalid address")

	// ErrInvalidCacheTTL indicates a negative cache TTL.
	ErrInvalidCacheTTL = errors.New("config: cache TTL must not be negative")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
