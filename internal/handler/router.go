// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/store"
)

// Route paths.
const (
	RouteRegister     = "/register"
	RouteLogin        = "/login"
	RouteLogout       = "/logout"
	RouteMe           = "/api/me"
	RouteDetectStress = "/api/detect-stress"
	RouteStressLogs   = "/api/stress-logs"
	RouteVideoFeed    = "/video_feed"
	RouteUsers        = "/api/users"
	RouteUserByID     = "/api/users/{id}"
	RouteSystemEvents = "/api/admin/system-events"
	RouteHealth       = "/health"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Sessions        *scs.SessionManager
	LoginProtection *middleware.LoginProtection // nil disables login rate limiting
	Availability    *store.Availability
	AuthEvents      middleware.AuthEventLogger

	CSRFKey        []byte
	IsDevelopment  bool
	RequestTimeout time.Duration

	Auth   *AuthHandler
	Users  *UsersHandler
	Detect *DetectHandler
	Logs   *LogsHandler
	Health *HealthHandler
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)))
	r.Use(middleware.RequestPath)
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(cfg.CSRFKey, cfg.IsDevelopment)))
	r.Use(cfg.Sessions.LoadAndSave)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// The video feed streams until the client leaves, so it is kept out
	// of the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(cfg.Sessions))
		r.Get(RouteVideoFeed, cfg.Detect.VideoFeed)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Get(RouteHealth, cfg.Health.Health)

		r.Group(func(r chi.Router) {
			if cfg.LoginProtection != nil {
				r.Use(cfg.LoginProtection.Middleware())
			}
			r.Post(RouteLogin, cfg.Auth.Login)
		})
		r.Post(RouteRegister, cfg.Auth.Register)
		r.Get(RouteLogout, cfg.Auth.Logout)
		r.Post(RouteLogout, cfg.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(cfg.Sessions))

			r.Get(RouteMe, cfg.Auth.Me)
			r.Post(RouteDetectStress, cfg.Detect.DetectStress)
			r.With(middleware.RequireStore(cfg.Availability)).Get(RouteStressLogs, cfg.Logs.StressLogs)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(cfg.AuthEvents))
				r.Use(middleware.RequireStore(cfg.Availability))

				r.Get(RouteUsers, cfg.Users.List)
				r.Post(RouteUsers, cfg.Users.Create)
				r.Put(RouteUserByID, cfg.Users.Update)
				r.Patch(RouteUserByID, cfg.Users.Update)
				r.Delete(RouteUserByID, cfg.Users.Delete)
				r.Get(RouteSystemEvents, cfg.Logs.SystemEvents)
			})
		})
	})

	return r
}
