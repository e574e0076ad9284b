// Package cache holds short-lived lookup results, such as resolved payment
// recipients, behind a small interface with in-memory and Redis backends.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNilClient indicates a Redis cache was built without a client.
var ErrNilClient = errors.New("cache: nil client")

// Cache stores string values under string keys with an optional TTL.
// A zero TTL keeps the value until it is deleted.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type memEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

// MemCache is an in-memory Cache for tests and single-process use.
type MemCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemCache creates an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// Get returns the value for key. Expired entries are reported as missing.
func (c *MemCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key.
func (c *MemCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *MemCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *MemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
