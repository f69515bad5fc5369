// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/session"
	"github.com/olegiv/ostress-go/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys.
const (
	ContextKeyPrincipal   ContextKey = "principal"
	ContextKeyRequestPath ContextKey = "request_path"
)

// Messages of the failure envelopes written here.
const (
	MessageUnauthorized        = "Unauthorized"
	MessageDatabaseUnavailable = "Database unavailable"
)

// AuthEventLogger records access-control events.
type AuthEventLogger interface {
	LogAuthEvent(ctx context.Context, level, message string, metadata map[string]any) error
}

// WriteError writes the {"success":false,"message":...} envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// RequireSession rejects requests without an authenticated session with
// 401 and puts the session principal into the request context.
func RequireSession(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := session.Principal(r.Context(), sm)
			if !ok {
				WriteError(w, http.StatusUnauthorized, MessageUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin rejects non-admin principals with 401. It must run after
// RequireSession. Denials are logged to events when it is non-nil.
func RequireAdmin(events AuthEventLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, MessageUnauthorized)
				return
			}

			if !p.IsAdmin() {
				slog.Warn("access denied",
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", p.SubjectID,
					"user_role", p.Role,
					"remote_addr", r.RemoteAddr,
				)
				if events != nil {
					_ = events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Access denied: admin role required", map[string]any{
						"method":  r.Method,
						"path":    r.URL.Path,
						"user_id": p.SubjectID,
					})
				}
				WriteError(w, http.StatusUnauthorized, MessageUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStore answers 500 while the database is marked unavailable.
func RequireStore(avail *store.Availability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := avail.Check(); err != nil {
				WriteError(w, http.StatusInternalServerError, MessageDatabaseUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// GetPrincipal returns the principal stored by RequireSession.
func GetPrincipal(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(model.Principal)
	return p, ok
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in error logs.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, ok := ctx.Value(ContextKeyRequestPath).(string)
	if !ok {
		return ""
	}
	return path
}
