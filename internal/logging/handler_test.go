// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/service"
	"github.com/olegiv/ostress-go/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func newLogger(t *testing.T) (*slog.Logger, *service.EventService) {
	t.Helper()
	events := service.NewEventService(testutil.TestDB(t))
	return slog.New(NewEventLogHandler(discardHandler{}, events)), events
}

func listEvents(t *testing.T, events *service.EventService) []model.SystemEvent {
	t.Helper()
	list, err := events.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return list
}

func metadataOf(t *testing.T, e model.SystemEvent) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &m); err != nil {
		t.Fatalf("metadata %q: %v", e.Metadata, err)
	}
	return m
}

func TestEventLogHandler_Handle_ErrorLevel(t *testing.T) {
	logger, events := newLogger(t)

	logger.Error("database connection failed", "host", "localhost", "port", 5432)

	list := listEvents(t, events)
	if len(list) != 1 {
		t.Fatalf("events = %d, want 1", len(list))
	}
	e := list[0]
	if e.Level != model.EventLevelError {
		t.Errorf("Level = %q, want %q", e.Level, model.EventLevelError)
	}
	if e.Message != "database connection failed" {
		t.Errorf("Message = %q", e.Message)
	}
	m := metadataOf(t, e)
	if m["host"] != "localhost" || m["port"] != float64(5432) {
		t.Errorf("metadata = %v", m)
	}
}

func TestEventLogHandler_Handle_WarnLevel(t *testing.T) {
	logger, events := newLogger(t)

	logger.Warn("disk space low")

	list := listEvents(t, events)
	if len(list) != 1 || list[0].Level != model.EventLevelWarning {
		t.Fatalf("events = %+v, want one warning", list)
	}
}

func TestEventLogHandler_Handle_BelowThreshold_NotCaptured(t *testing.T) {
	logger, events := newLogger(t)

	logger.Info("just info")
	logger.Debug("just debug")

	if list := listEvents(t, events); len(list) != 0 {
		t.Errorf("events = %d, want 0", len(list))
	}
}

func TestEventLogHandler_Handle_CustomLevel(t *testing.T) {
	events := service.NewEventService(testutil.TestDB(t))
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, events, slog.LevelError))

	logger.Warn("not captured")
	logger.Error("captured")

	list := listEvents(t, events)
	if len(list) != 1 || list[0].Message != "captured" {
		t.Fatalf("events = %+v, want only the error", list)
	}
}

func TestEventLogHandler_CategoryInference(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"login failed", model.EventCategoryAuth},
		{"access denied", model.EventCategoryAuth},
		{"account update rejected", model.EventCategoryAccount},
		{"classifier failed, using fallback", model.EventCategoryDetection},
		{"stream ended", model.EventCategoryDetection},
		{"disk full", model.EventCategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := inferCategory(tt.message); got != tt.want {
				t.Errorf("inferCategory(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestEventLogHandler_ExplicitCategory(t *testing.T) {
	logger, events := newLogger(t)

	logger.Warn("login burst", "category", model.EventCategorySystem, "count", 3)

	list := listEvents(t, events)
	if len(list) != 1 {
		t.Fatalf("events = %d, want 1", len(list))
	}
	if list[0].Category != model.EventCategorySystem {
		t.Errorf("Category = %q, want %q", list[0].Category, model.EventCategorySystem)
	}
	if _, ok := metadataOf(t, list[0])["category"]; ok {
		t.Error("category should not be repeated in metadata")
	}
}

func TestEventLogHandler_ErrorAttr(t *testing.T) {
	logger, events := newLogger(t)

	logger.Error("ping failed", "error", errors.New("connection refused"))

	m := metadataOf(t, listEvents(t, events)[0])
	if m["error"] != "connection refused" {
		t.Errorf("error metadata = %v", m["error"])
	}
}

func TestEventLogHandler_WithAttrsAndGroup(t *testing.T) {
	logger, events := newLogger(t)

	logger.With("component", "detect").WithGroup("req").Warn("slow request", "ms", 900)

	m := metadataOf(t, listEvents(t, events)[0])
	if m["component"] != "detect" {
		t.Errorf("component = %v", m["component"])
	}
	if m["req.ms"] != float64(900) {
		t.Errorf("req.ms = %v, metadata = %v", m["req.ms"], m)
	}
}

func TestEventLogHandler_RequestPath(t *testing.T) {
	logger, events := newLogger(t)

	ctx := context.WithValue(context.Background(), middleware.ContextKeyRequestPath, "/api/detect_stress")
	logger.ErrorContext(ctx, "handler failed")

	m := metadataOf(t, listEvents(t, events)[0])
	if m["url"] != "/api/detect_stress" {
		t.Errorf("url = %v", m["url"])
	}
}
