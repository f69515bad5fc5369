// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/olegiv/ostress-go/internal/cache"
	"github.com/olegiv/ostress-go/internal/store"
	"github.com/olegiv/ostress-go/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	avail        *store.Availability
	counters     cache.Cache
	cacheBackend string
	classifier   string
	streaming    bool
	startTime    time.Time
}

// NewHealthHandler creates a new health handler. counters is the login
// protection cache and backend its type as reported by cache.New.
func NewHealthHandler(avail *store.Availability, counters cache.Cache, backend, classifier string, streaming bool) *HealthHandler {
	return &HealthHandler{
		avail:        avail,
		counters:     counters,
		cacheBackend: backend,
		classifier:   classifier,
		streaming:    streaming,
		startTime:    time.Now(),
	}
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// CacheCheck is the cache entry of the checks map.
type CacheCheck struct {
	Check
	Backend string `json:"backend"`
	cache.Stats
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /health. It pings the database and reports 503
// while it is unreachable. The cache is reported but never degrades the
// service: login protection fails open.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	db := Check{Status: "healthy"}
	if err := h.avail.Ping(r.Context()); err != nil {
		db = Check{Status: "unhealthy", Message: "database unreachable"}
	}
	db.Latency = time.Since(start).Round(time.Microsecond).String()

	status, code := "healthy", http.StatusOK
	if db.Status != "healthy" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	checks := map[string]any{
		"database": db,
	}
	if h.counters != nil {
		checks["cache"] = h.cacheCheck(r.Context())
	}

	writeJSON(w, code, map[string]any{
		"success":    code == http.StatusOK,
		"status":     status,
		"version":    version.Get().Version,
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"classifier": h.classifier,
		"streaming":  h.streaming,
		"checks":     checks,
	})
}

func (h *HealthHandler) cacheCheck(ctx context.Context) CacheCheck {
	start := time.Now()
	c := CacheCheck{Check: Check{Status: "healthy"}, Backend: h.cacheBackend}
	if p, ok := h.counters.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			c.Status, c.Message = "unhealthy", "cache unreachable"
		}
	}
	c.Latency = time.Since(start).Round(time.Microsecond).String()
	c.Stats = h.counters.Stats()
	return c
}
