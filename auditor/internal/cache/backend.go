// Package cache stores completed audit results in two namespaces: a
// content cache keyed by page fingerprint and URL (24h), and a recency
// cache keyed by URL alone (minutes). A remote Redis backend is preferred;
// any remote failure degrades to an in-process map.
//
// The in-process map does not enforce TTLs. Entries written there live
// until the process exits, which is acceptable for single-process
// deployments only.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend is a byte-oriented key/value store with per-key TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Memory is the process-local Backend. TTLs are accepted and ignored.
// Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	v, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	c.mu.Lock()
	c.m[key] = cp
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored keys.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
