// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/ostress-go/internal/cache"
)

// MessageTooManyAttempts is returned with 429 responses.
const MessageTooManyAttempts = "Too many login attempts. Please try again later."

// maxLockout caps the exponential lockout duration.
const maxLockout = 24 * time.Hour

// LoginProtection provides combined IP rate limiting and account lockout
// protection. Failure counters and lockouts live in the cache so they are
// shared between instances when the cache is Redis.
type LoginProtection struct {
	ipLimiters *limiterCache[string]
	cache      cache.Cache

	maxFailedAttempts int           // Lock account after this many failures
	lockoutDuration   time.Duration // Base lockout duration (doubles with each lockout)
	attemptWindow     time.Duration // Window to count failed attempts
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is requests per second per IP (default: 0.5 = 1 request per 2 seconds)
	IPRateLimit float64
	// IPBurst is the maximum burst size for IP rate limiting (default: 5)
	IPBurst int
	// MaxFailedAttempts before account lockout (default: 5)
	MaxFailedAttempts int
	// LockoutDuration is base lockout time, doubles with each lockout (default: 15 minutes)
	LockoutDuration time.Duration
	// AttemptWindow is the time window for counting failed attempts (default: 15 minutes)
	AttemptWindow time.Duration
}

// DefaultLoginProtectionConfig returns sensible defaults.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a new login protection instance backed by c.
func NewLoginProtection(cfg LoginProtectionConfig, c cache.Cache) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	return &LoginProtection{
		ipLimiters:        newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		cache:             c,
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
	}
}

func failKey(username string) string    { return "login:fail:" + strings.ToLower(username) }
func lockKey(username string) string    { return "login:lock:" + strings.ToLower(username) }
func lockoutsKey(username string) string { return "login:lockouts:" + strings.ToLower(username) }

// CheckIPRateLimit reports whether a login attempt from ip is allowed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether username is locked and for how long.
func (lp *LoginProtection) IsAccountLocked(ctx context.Context, username string) (bool, time.Duration) {
	remaining, err := lp.cache.TTL(ctx, lockKey(username))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("login lockout lookup failed", "error", err)
		}
		return false, 0
	}
	return true, remaining
}

// RecordFailedAttempt records a failed login attempt and reports whether
// the account is now locked.
func (lp *LoginProtection) RecordFailedAttempt(ctx context.Context, username string) (bool, time.Duration) {
	count, err := lp.cache.Incr(ctx, failKey(username), lp.attemptWindow)
	if err != nil {
		slog.Warn("recording failed login attempt", "error", err)
		return false, 0
	}
	slog.Debug("login attempt recorded", "username", username, "count", count)

	if count < int64(lp.maxFailedAttempts) {
		return false, 0
	}

	lockouts, err := lp.cache.Incr(ctx, lockoutsKey(username), maxLockout)
	if err != nil {
		lockouts = 1
	}

	// Exponential backoff: base, 2x, 4x, ... capped at maxLockout.
	lockDuration := lp.lockoutDuration
	for i := int64(1); i < lockouts; i++ {
		lockDuration *= 2
		if lockDuration > maxLockout {
			lockDuration = maxLockout
			break
		}
	}

	_ = lp.cache.Set(ctx, lockKey(username), []byte("1"), lockDuration)
	_ = lp.cache.Delete(ctx, failKey(username))

	slog.Warn("account locked due to failed attempts",
		"username", username,
		"lockouts", lockouts,
		"duration", lockDuration,
	)
	return true, lockDuration
}

// RecordSuccessfulLogin clears failed attempt tracking for an account.
func (lp *LoginProtection) RecordSuccessfulLogin(ctx context.Context, username string) {
	_ = lp.cache.Delete(ctx, failKey(username))
	_ = lp.cache.Delete(ctx, lockoutsKey(username))
}

// RemainingAttempts returns the number of failures left before lockout.
func (lp *LoginProtection) RemainingAttempts(ctx context.Context, username string) int {
	val, err := lp.cache.Get(ctx, failKey(username))
	if err != nil {
		return lp.maxFailedAttempts
	}
	count, err := strconv.Atoi(string(val))
	if err != nil {
		return lp.maxFailedAttempts
	}
	return max(0, lp.maxFailedAttempts-count)
}

// Middleware returns HTTP middleware for IP rate limiting on login.
// This should be applied to the login POST route.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "ip", ip)
				WriteError(w, http.StatusTooManyRequests, MessageTooManyAttempts)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Cleanup drops the per-IP limiters when they grow past maxEntries.
func (lp *LoginProtection) Cleanup(maxEntries int) {
	if lp.ipLimiters.clearIfExceeds(maxEntries) {
		slog.Info("cleared IP rate limiters due to size")
	}
}

// getClientIP returns the host part of RemoteAddr. chi's RealIP middleware
// runs first and rewrites RemoteAddr from proxy headers.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()
	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}
