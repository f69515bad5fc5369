// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps the authenticated principal in a server-side
// session referenced by an opaque cookie token.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/ostress-go/internal/model"
)

// Session keys.
const (
	KeySubjectID = "user_id"
	KeyUsername  = "username"
	KeyRole      = "role"
)

// DefaultLifetime is the absolute session lifetime.
const DefaultLifetime = 24 * time.Hour

// New creates a new session manager configured with SQLite store.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = DefaultLifetime
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev // Secure cookies in production only
	if !isDev {
		sm.Cookie.Name = "__Host-session"
	}
	return sm
}

// Login stores p in the session under a fresh token.
func Login(ctx context.Context, sm *scs.SessionManager, p model.Principal) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, KeySubjectID, p.SubjectID)
	sm.Put(ctx, KeyUsername, p.Username)
	sm.Put(ctx, KeyRole, p.Role)
	return nil
}

// Principal returns the principal of the current session. ok is false when
// the session is anonymous or carries an unknown role.
func Principal(ctx context.Context, sm *scs.SessionManager) (p model.Principal, ok bool) {
	p = model.Principal{
		SubjectID: sm.GetString(ctx, KeySubjectID),
		Username:  sm.GetString(ctx, KeyUsername),
		Role:      sm.GetString(ctx, KeyRole),
	}
	if p.SubjectID == "" || !model.IsValidRole(p.Role) {
		return model.Principal{}, false
	}
	return p, true
}

// Logout destroys the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	if err := sm.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}
