// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/service"
)

// UsersHandler handles the admin account management API.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "List users", err)
		return
	}

	users := make([]model.AccountView, 0, len(accounts))
	for i := range accounts {
		users = append(users, accounts[i].View())
	}
	writeJSONSuccess(w, map[string]any{"users": users})
}

type createUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	Role     string  `json:"role"`
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createUserRequest
	if err := decodeJSON(w, r, &in, maxJSONBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	account, err := h.accounts.Create(r.Context(), model.NewAccount{
		Username: in.Username,
		Password: in.Password,
		Email:    in.Email,
		Role:     in.Role,
	})
	if err != nil {
		writeServiceError(w, r, "Create user", err)
		return
	}

	slog.Info("account created", "user_id", account.ID, "username", account.Username,
		"role", account.Role, "by", actor(r))
	writeJSONSuccess(w, map[string]any{
		"message": "User created",
		"user":    account.View(),
	})
}

// Update handles PUT and PATCH /api/users/{id}. Only the keys present in
// the body are applied; "email": null clears the email.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := decodeJSON(w, r, &raw, maxJSONBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	upd, err := parseAccountUpdate(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	account, err := h.accounts.Update(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			writeJSONError(w, http.StatusBadRequest, "Username cannot be empty")
			return
		}
		if errors.Is(err, service.ErrDuplicateUsername) {
			writeJSONError(w, http.StatusBadRequest, "Username already in use")
			return
		}
		writeServiceError(w, r, "Update user", err)
		return
	}

	slog.Info("account updated", "user_id", account.ID, "by", actor(r))
	writeJSONSuccess(w, map[string]any{
		"message": "User updated",
		"user":    account.View(),
	})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, "Delete user", err)
		return
	}

	slog.Info("account deleted", "user_id", id, "by", actor(r))
	writeJSONSuccess(w, map[string]any{"message": "User deleted successfully"})
}

// parseAccountUpdate reads the recognized keys of an update body.
func parseAccountUpdate(raw map[string]json.RawMessage) (model.AccountUpdate, error) {
	var upd model.AccountUpdate

	str := func(key string) (*string, bool, error) {
		v, ok := raw[key]
		if !ok {
			return nil, false, nil
		}
		if string(v) == "null" {
			return nil, true, nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, true, err
		}
		return &s, true, nil
	}

	var err error
	var present bool
	if upd.Username, _, err = str("username"); err != nil {
		return upd, err
	}
	if upd.Email, present, err = str("email"); err != nil {
		return upd, err
	}
	upd.ClearEmail = present && upd.Email == nil
	if upd.Role, _, err = str("role"); err != nil {
		return upd, err
	}
	if upd.Password, _, err = str("password"); err != nil {
		return upd, err
	}
	return upd, nil
}

// userID parses the {id} URL parameter. An unparsable id cannot name an
// account, so it is answered like a missing one.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusNotFound, msgUserNotFound)
		return 0, false
	}
	return id, true
}

func actor(r *http.Request) string {
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		return p.Username
	}
	return ""
}
