// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrUnavailable is returned by Check while the database is unreachable.
var ErrUnavailable = errors.New("database unavailable")

// Availability tracks whether the database answered its last ping.
// Handlers consult it before touching the store so an outage is reported
// up front instead of surfacing as a failed write halfway through a request.
type Availability struct {
	db      *sql.DB
	timeout time.Duration
	down    atomic.Bool
}

// NewAvailability creates an availability tracker for db. It starts in the
// available state.
func NewAvailability(db *sql.DB, timeout time.Duration) *Availability {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Availability{db: db, timeout: timeout}
}

// Check returns ErrUnavailable if the last ping failed.
func (a *Availability) Check() error {
	if a == nil {
		return nil
	}
	if a.db == nil || a.down.Load() {
		return ErrUnavailable
	}
	return nil
}

// Ping pings the database and records the outcome.
func (a *Availability) Ping(ctx context.Context) error {
	if a.db == nil {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.db.PingContext(ctx)
	wasDown := a.down.Swap(err != nil)
	switch {
	case err != nil && !wasDown:
		slog.Error("database became unavailable", "error", err, "category", "system")
	case err == nil && wasDown:
		slog.Info("database available again")
	}
	return err
}

// MarkDown forces the unavailable state until the next successful ping.
func (a *Availability) MarkDown() {
	a.down.Store(true)
}
