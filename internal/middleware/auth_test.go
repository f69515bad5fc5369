// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/session"
	"github.com/olegiv/ostress-go/internal/store"
)

type recordedEvent struct {
	level, message string
	metadata       map[string]any
}

type fakeEventLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEventLogger) LogAuthEvent(_ context.Context, level, message string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{level, message, metadata})
	return nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestGetPrincipal(t *testing.T) {
	t.Run("no principal in context", func(t *testing.T) {
		if _, ok := GetPrincipal(context.Background()); ok {
			t.Error("GetPrincipal() ok = true, want false")
		}
	})

	t.Run("principal in context", func(t *testing.T) {
		want := model.Principal{SubjectID: "7", Username: "alice", Role: model.RoleUser}
		got, ok := GetPrincipal(WithPrincipal(context.Background(), want))
		if !ok {
			t.Fatal("GetPrincipal() ok = false, want true")
		}
		if got != want {
			t.Errorf("GetPrincipal() = %+v, want %+v", got, want)
		}
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusTeapot, "nope")

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != false || body["message"] != "nope" {
		t.Errorf("body = %v", body)
	}
}

// sessionRouter logs in with the principal from the "role" query parameter
// on /login and serves the protected handler on every other path.
func sessionRouter(sm *scs.SessionManager, protected http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p := model.Principal{SubjectID: "1", Username: "bob", Role: r.URL.Query().Get("role")}
		if err := session.Login(r.Context(), sm, p); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", protected)
	return sm.LoadAndSave(mux)
}

func loginCookie(t *testing.T, h http.Handler, role string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?role="+role, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}
	return cookies[0]
}

func TestRequireSession(t *testing.T) {
	sm := scs.New()
	var seen model.Principal
	protected := RequireSession(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	h := sessionRouter(sm, protected)

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeEnvelope(t, rec); body["message"] != MessageUnauthorized {
			t.Errorf("message = %v", body["message"])
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		cookie := loginCookie(t, h, model.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if seen.Username != "bob" || seen.Role != model.RoleUser {
			t.Errorf("principal = %+v", seen)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	sm := scs.New()
	events := &fakeEventLogger{}
	protected := RequireSession(sm)(RequireAdmin(events)(okHandler))
	h := sessionRouter(sm, protected)

	tests := []struct {
		name       string
		role       string
		wantStatus int
		wantEvents int
	}{
		{"admin allowed", model.RoleAdmin, http.StatusOK, 0},
		{"user denied", model.RoleUser, http.StatusUnauthorized, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events.events = nil
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.AddCookie(loginCookie(t, h, tt.role))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(events.events) != tt.wantEvents {
				t.Fatalf("events = %d, want %d", len(events.events), tt.wantEvents)
			}
			if tt.wantEvents > 0 && events.events[0].level != model.EventLevelWarning {
				t.Errorf("event level = %q", events.events[0].level)
			}
		})
	}
}

func TestRequireAdmin_NoPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAdmin(nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireStore(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	avail := store.NewAvailability(db, 0)
	h := RequireStore(avail)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("available: status = %d, want 200", rec.Code)
	}

	avail.MarkDown()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("down: status = %d, want 500", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["message"] != MessageDatabaseUnavailable {
		t.Errorf("message = %v", body["message"])
	}
}

func TestRequestPath(t *testing.T) {
	var got string
	h := RequestPath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestPath(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/detect_stress", nil))
	if got != "/api/detect_stress" {
		t.Errorf("GetRequestPath() = %q", got)
	}
	if GetRequestPath(context.Background()) != "" {
		t.Error("GetRequestPath() on empty context should be empty")
	}
}
