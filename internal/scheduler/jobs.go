// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import "context"

// Pinger checks a dependency and records its availability.
// store.Availability implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cleaner drops in-memory state once it grows past a bound.
// middleware.LoginProtection implements it.
type Cleaner interface {
	Cleanup(maxEntries int)
}

// Job names.
const (
	JobStoreCheck       = "store-check"
	JobLimiterCleanup   = "login-limiter-cleanup"
	limiterCleanupBound = 10000
)

// StoreCheckJob returns a job that pings the store and records its availability.
func StoreCheckJob(p Pinger) JobFunc {
	return p.Ping
}

// LimiterCleanupJob returns a job that trims the per-IP login limiters.
func LimiterCleanupJob(c Cleaner) JobFunc {
	return func(context.Context) error {
		c.Cleanup(limiterCleanupBound)
		return nil
	}
}
