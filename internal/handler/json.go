// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON HTTP handlers. Every response uses the
// {"success": bool, "message": string, ...} envelope.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/service"
	"github.com/olegiv/ostress-go/internal/store"
)

// Request body limits.
const (
	maxJSONBody   = 1 << 20
	maxDetectBody = 16 << 20 // base64 of vision.MaxImageBytes plus the data-URL prefix
)

// Shared messages.
const (
	msgInvalidBody         = "Invalid request body"
	msgDatabaseUnavailable = middleware.MessageDatabaseUnavailable
	msgUserNotFound        = "User not found"
)

// writeJSON writes data with status. data must already carry "success".
func writeJSON(w http.ResponseWriter, status int, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSONSuccess writes a 200 JSON success response.
func writeJSONSuccess(w http.ResponseWriter, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data["success"] = true
	writeJSON(w, http.StatusOK, data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	middleware.WriteError(w, statusCode, message)
}

// decodeJSON decodes a JSON object body of at most limit bytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// serviceErrors maps account store errors to status and message.
var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrMissingFields, http.StatusBadRequest, "Username and password are required"},
	{service.ErrInvalidUsername, http.StatusBadRequest, "Username contains invalid characters"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "Email contains invalid characters"},
	{service.ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
	{service.ErrDuplicateUsername, http.StatusBadRequest, "Username already exists"},
	{service.ErrNoChanges, http.StatusBadRequest, "No updates provided"},
	{service.ErrLastAdminProtected, http.StatusBadRequest, "At least one admin must remain"},
	{service.ErrAdminDeletionForbidden, http.StatusBadRequest, "Admin accounts cannot be deleted"},
	{service.ErrNotFound, http.StatusNotFound, msgUserNotFound},
	{store.ErrUnavailable, http.StatusInternalServerError, msgDatabaseUnavailable},
}

// writeServiceError maps err to its status and message. Unknown errors
// become a 500 whose message is prefixed with op.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeJSONError(w, m.status, m.message)
			return
		}
	}
	slog.Error(op+" failed", "error", err, "path", r.URL.Path)
	writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("%s error: %v", op, err))
}
