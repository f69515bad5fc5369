// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/service"
)

// LogsHandler lists stress events and audit events.
type LogsHandler struct {
	stressLogs *service.StressLogService
	events     *service.EventService
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(stressLogs *service.StressLogService, events *service.EventService) *LogsHandler {
	return &LogsHandler{stressLogs: stressLogs, events: events}
}

// StressLogs handles GET /api/stress-logs. Admins see every subject's
// events, everyone else only their own.
func (h *LogsHandler) StressLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, middleware.MessageUnauthorized)
		return
	}

	events, err := h.stressLogs.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, "Stress logs", err)
		return
	}

	logs := make([]model.StressEventView, 0, len(events))
	for i := range events {
		logs = append(logs, events[i].View())
	}
	writeJSONSuccess(w, map[string]any{"logs": logs})
}

type systemEventView struct {
	ID        string          `json:"id"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

// SystemEvents handles GET /api/admin/system-events.
func (h *LogsHandler) SystemEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "System events", err)
		return
	}

	views := make([]systemEventView, 0, len(events))
	for _, e := range events {
		meta := json.RawMessage(e.Metadata)
		if !json.Valid(meta) {
			meta = json.RawMessage("{}")
		}
		views = append(views, systemEventView{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			Metadata:  meta,
			CreatedAt: model.FormatTimestamp(e.CreatedAt),
		})
	}
	writeJSONSuccess(w, map[string]any{"events": views})
}
