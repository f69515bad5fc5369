// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	// FallbackToMemory uses the memory backend when Redis is unreachable.
	FallbackToMemory bool

	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// Result describes the cache that was created.
type Result struct {
	Cache       Cache
	BackendType string
	IsFallback  bool
}

// New creates a Redis cache when cfg.RedisURL is set, otherwise a memory
// cache.
func New(cfg Config) (Result, error) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	memory := func() Cache {
		return NewMemoryCache(MemoryCacheOptions{
			DefaultTTL:      cfg.DefaultTTL,
			CleanupInterval: cfg.CleanupInterval,
		})
	}

	if cfg.RedisURL == "" {
		return Result{Cache: memory(), BackendType: BackendMemory}, nil
	}

	rc, err := NewRedisCacheFromURL(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
	if err != nil {
		if !cfg.FallbackToMemory {
			return Result{}, fmt.Errorf("connecting to redis %s: %w", SanitizeRedisURL(cfg.RedisURL), err)
		}
		slog.Warn("redis unavailable, falling back to memory cache",
			"url", SanitizeRedisURL(cfg.RedisURL), "error", err)
		return Result{Cache: memory(), BackendType: BackendMemory, IsFallback: true}, nil
	}

	slog.Info("redis cache connected", "url", SanitizeRedisURL(cfg.RedisURL))
	return Result{Cache: rc, BackendType: BackendRedis}, nil
}

// SanitizeRedisURL masks the password in a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
