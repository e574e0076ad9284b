// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and validates royalty distributor settings.
//
// Settings come from a "key = value" file in the data directory, then from
// ROYALTY_* environment variables, and finally from command-line flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all distributor settings.
type Config struct {
	DataDir  string `env:"ROYALTY_DATADIR"`
	Network  string `env:"ROYALTY_NETWORK"`
	LogLevel string `env:"ROYALTY_LOGLEVEL"`
	LogFile  string `env:"ROYALTY_LOGFILE"`

	FacilitatorURL     string        `env:"ROYALTY_FACILITATOR_URL"`
	FacilitatorToken   string        `env:"ROYALTY_FACILITATOR_TOKEN"`
	FacilitatorTimeout time.Duration `env:"ROYALTY_FACILITATOR_TIMEOUT"`

	Concurrency       int  `env:"ROYALTY_CONCURRENCY"`
	StrictSplits      bool `env:"ROYALTY_STRICT_SPLITS"`
	VerifySettlements bool `env:"ROYALTY_VERIFY_SETTLEMENTS"`

	RedisAddr      string        `env:"ROYALTY_REDIS_ADDR"`
	RedisPassword  string        `env:"ROYALTY_REDIS_PASSWORD"`
	CacheTTL       time.Duration `env:"ROYALTY_CACHE_TTL"`
	DNSSECUpstream string        `env:"ROYALTY_DNSSEC_UPSTREAM"`

	KafkaBrokers []string `env:"ROYALTY_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"ROYALTY_KAFKA_TOPIC"`
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:            DefaultDataDir(),
		Network:            "mainnet",
		LogLevel:           "info",
		FacilitatorTimeout: 5 * time.Minute,
		Concurrency:        1,
		StrictSplits:       true,
		VerifySettlements:  true,
		CacheTTL:           time.Hour,
		KafkaTopic:         "royalty.distributions",
	}
}

// DefaultDataDir returns ~/.royalty, or .royalty when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".royalty"
	}
	return filepath.Join(home, ".royalty")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LedgerPath returns the ledger database path inside the data directory.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// LoadConfig reads the file at path on top of DefaultConfig. Unknown keys
// are ignored so older binaries can read newer files.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on its first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return strings.ToLower(key), strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "facilitator_url":
		c.FacilitatorURL = value
	case "facilitator_token":
		c.FacilitatorToken = value
	case "facilitator_timeout":
		c.FacilitatorTimeout, err = time.ParseDuration(value)
	case "concurrency":
		c.Concurrency, err = strconv.Atoi(value)
	case "strict_splits":
		c.StrictSplits, err = strconv.ParseBool(value)
	case "verify_settlements":
		c.VerifySettlements, err = strconv.ParseBool(value)
	case "redis_addr":
		c.RedisAddr = value
	case "redis_password":
		c.RedisPassword = value
	case "cache_ttl":
		c.CacheTTL, err = time.ParseDuration(value)
	case "dnssec_upstream":
		c.DNSSECUpstream = value
	case "kafka_brokers":
		c.KafkaBrokers = splitList(value)
	case "kafka_topic":
		c.KafkaTopic = value
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SaveConfig writes cfg to path, creating the parent directory.
// The file may hold credentials, so it is written 0600.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Royalty Distributor Configuration\n\n")
	for _, kv := range [][2]string{
		{"datadir", cfg.DataDir},
		{"network", cfg.Network},
		{"loglevel", cfg.LogLevel},
		{"logfile", cfg.LogFile},
		{"facilitator_url", cfg.FacilitatorURL},
		{"facilitator_token", cfg.FacilitatorToken},
		{"facilitator_timeout", cfg.FacilitatorTimeout.String()},
		{"concurrency", strconv.Itoa(cfg.Concurrency)},
		{"strict_splits", strconv.FormatBool(cfg.StrictSplits)},
		{"verify_settlements", strconv.FormatBool(cfg.VerifySettlements)},
		{"redis_addr", cfg.RedisAddr},
		{"redis_password", cfg.RedisPassword},
		{"cache_ttl", cfg.CacheTTL.String()},
		{"dnssec_upstream", cfg.DNSSECUpstream},
		{"kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")},
		{"kafka_topic", cfg.KafkaTopic},
	} {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any ROYALTY_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Load reads the config file in dataDir if present, applies environment
// overrides and validates the result.
func Load(dataDir string) (Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cfg, err := LoadConfig(ConfigPath(dataDir))
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return cfg, err
	}
	if errors.Is(err, ErrConfigNotFound) {
		cfg.DataDir = dataDir
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
