// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/mileusna/useragent"

	"github.com/olegiv/ostress-go/internal/auth"
	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/service"
	"github.com/olegiv/ostress-go/internal/session"
	"github.com/olegiv/ostress-go/internal/store"
)

// AuthHandler handles registration, login, logout and the current principal.
type AuthHandler struct {
	authn           *auth.Authenticator
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
	avail           *store.Availability
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(authn *auth.Authenticator, sm *scs.SessionManager, events *service.EventService, lp *middleware.LoginProtection, avail *store.Availability) *AuthHandler {
	return &AuthHandler{
		authn:           authn,
		sessionManager:  sm,
		eventService:    events,
		loginProtection: lp,
		avail:           avail,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /register. A role in the body is ignored.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.avail.Check(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, msgDatabaseUnavailable)
		return
	}

	var in credentials
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	account, err := h.authn.Register(r.Context(), in.Username, in.Password)
	if err != nil {
		writeServiceError(w, r, "Registration", err)
		return
	}

	slog.Info("account registered", "user_id", account.ID, "username", account.Username)
	h.logAuthEvent(r, model.EventLevelInfo, "Account registered", map[string]any{
		"user_id":  account.ID,
		"username": account.Username,
	})
	writeJSONSuccess(w, map[string]any{"message": "Registration successful"})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	isSuperAdmin := h.authn.IsSuperAdmin(in.Username, in.Password)
	if !isSuperAdmin {
		if err := h.avail.Check(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, msgDatabaseUnavailable)
			return
		}
		if h.loginProtection != nil {
			if locked, remaining := h.loginProtection.IsAccountLocked(r.Context(), in.Username); locked {
				h.logAuthEvent(r, model.EventLevelWarning, "Login attempt on locked account", map[string]any{"username": in.Username})
				writeJSONError(w, http.StatusTooManyRequests,
					fmt.Sprintf("Account temporarily locked. Try again in %s.", formatDuration(remaining)))
				return
			}
		}
	}

	p, err := h.authn.Authenticate(r.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, auth.ErrBadRequest):
		writeJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.loginFailed(w, r, in.Username)
		return
	case err != nil:
		writeServiceError(w, r, "Login", err)
		return
	}

	if h.loginProtection != nil && !isSuperAdmin {
		h.loginProtection.RecordSuccessfulLogin(r.Context(), in.Username)
	}

	if err := session.Login(r.Context(), h.sessionManager, p); err != nil {
		writeServiceError(w, r, "Login", err)
		return
	}

	attrs := loginAttrs(r, p)
	slog.Info("user logged in", attrs...)
	h.logAuthEvent(r, model.EventLevelInfo, "User logged in", attrsToMap(attrs))

	message := "Login successful"
	if isSuperAdmin {
		message = "Admin login successful"
	}
	writeJSONSuccess(w, map[string]any{
		"role":    p.Role,
		"message": message,
	})
}

// loginFailed records the failure and answers 401, or 429 once the
// account gets locked.
func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, username string) {
	slog.Debug("invalid login attempt", "username", username)
	h.logAuthEvent(r, model.EventLevelWarning, "Login failed: invalid credentials", map[string]any{"username": username})

	if h.loginProtection != nil {
		if locked, d := h.loginProtection.RecordFailedAttempt(r.Context(), username); locked {
			h.logAuthEvent(r, model.EventLevelWarning, "Account locked due to failed attempts", map[string]any{
				"username": username,
				"duration": d.String(),
			})
			writeJSONError(w, http.StatusTooManyRequests,
				fmt.Sprintf("Too many failed attempts. Account locked for %s.", formatDuration(d)))
			return
		}
	}
	writeJSONError(w, http.StatusUnauthorized, "Invalid credentials")
}

// Logout handles GET and POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := session.Principal(r.Context(), h.sessionManager)
	if err := session.Logout(r.Context(), h.sessionManager); err != nil {
		writeServiceError(w, r, "Logout", err)
		return
	}
	if ok {
		slog.Info("user logged out", "user_id", p.SubjectID, "username", p.Username)
	}
	writeJSONSuccess(w, map[string]any{"message": "Logged out"})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, middleware.MessageUnauthorized)
		return
	}
	writeJSONSuccess(w, map[string]any{
		"user_id":  p.SubjectID,
		"username": p.Username,
		"role":     p.Role,
	})
}

func (h *AuthHandler) logAuthEvent(r *http.Request, level, message string, metadata map[string]any) {
	if h.eventService == nil || h.avail.Check() != nil {
		return
	}
	if err := h.eventService.LogAuthEvent(r.Context(), level, message, metadata); err != nil {
		slog.Debug("auth event not recorded", "error", err)
	}
}

// loginAttrs returns log attributes describing a login and its client.
func loginAttrs(r *http.Request, p model.Principal) []any {
	ua := useragent.Parse(r.UserAgent())
	browser, osName := ua.Name, ua.OS
	if browser == "" {
		browser = "Unknown"
	}
	if osName == "" {
		osName = "Unknown"
	}

	device := "desktop"
	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	}

	return []any{
		"user_id", p.SubjectID,
		"username", p.Username,
		"role", p.Role,
		"browser", browser,
		"os", osName,
		"device", device,
		"remote_addr", r.RemoteAddr,
	}
}

func attrsToMap(attrs []any) map[string]any {
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok {
			m[k] = attrs[i+1]
		}
	}
	return m
}

// formatDuration renders d rounded up to whole minutes, or seconds below one minute.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int((d + time.Second - 1) / time.Second)
		if secs <= 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
