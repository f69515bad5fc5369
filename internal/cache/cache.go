// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the short-lived key/value store behind login
// protection, backed by process memory or Redis.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for cache implementations.
// All implementations must be thread-safe.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl uses the default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments a counter and returns the new value. The
	// ttl applies only when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of a key, or ErrCacheMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Stats returns hit and miss counters since the cache was created.
	Stats() Stats

	// Close releases any resources held by the cache.
	Close() error
}

// Stats holds cache statistics. Items is only known for the memory backend.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Items  int   `json:"items"`
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"

	// ErrNotCounter is returned by Incr when the key holds a non-integer.
	ErrNotCounter Error = "value is not a counter"
)
