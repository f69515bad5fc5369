// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is a thread-safe in-memory cache.
type MemoryCache struct {
	mu         sync.Mutex
	data       map[string]*memoryCacheEntry
	defaultTTL time.Duration
	stopCh     chan struct{}
	closed     atomic.Bool

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// memoryCacheEntry holds a cached value with its expiration time.
type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration // Interval for expired entry cleanup (0 = no cleanup)
}

// NewMemoryCache creates a new memory cache with the given options.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	c := &MemoryCache{
		data:       make(map[string]*memoryCacheEntry),
		defaultTTL: opts.DefaultTTL,
		stopCh:     make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.cleanupLoop(opts.CleanupInterval)
	}
	return c
}

// lookup returns the live entry for key. Callers hold c.mu.
func (c *MemoryCache) lookup(key string, now time.Time) (*memoryCacheEntry, bool) {
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if now.After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false
	}
	return entry, true
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	entry, ok := c.lookup(key, time.Now())
	var result []byte
	if ok {
		// Return a copy to prevent mutation
		result = make([]byte, len(entry.value))
		copy(result, entry.value)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return result, nil
}

// Set stores a value in the cache with the specified TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	c.data[key] = &memoryCacheEntry{value: valueCopy, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()

	c.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Incr increments the counter stored at key.
func (c *MemoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.lookup(key, now)
	if !ok {
		c.data[key] = &memoryCacheEntry{value: []byte("1"), expiresAt: now.Add(ttl)}
		c.sets.Add(1)
		return 1, nil
	}

	n, err := strconv.ParseInt(string(entry.value), 10, 64)
	if err != nil {
		return 0, ErrNotCounter
	}
	n++
	entry.value = []byte(strconv.FormatInt(n, 10))
	c.sets.Add(1)
	return n, nil
}

// TTL returns the remaining lifetime of key.
func (c *MemoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.lookup(key, now)
	if !ok {
		return 0, ErrCacheMiss
	}
	return entry.expiresAt.Sub(now), nil
}

// Close stops the cleanup goroutine and releases resources.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	items := len(c.data)
	c.mu.Unlock()
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Items:  items,
	}
}

// removeExpired removes all expired entries from the cache.
func (c *MemoryCache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}

// cleanupLoop periodically removes expired entries.
func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
