// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that integrates with the
// audit event log. It forwards logs at WARN level and above to the
// database-backed system_events table.
package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
)

// EventWriter persists audit events. service.EventService implements it.
// Implementations must not log through the handler that wraps them.
type EventWriter interface {
	LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error
}

// EventLogHandler is a slog.Handler that wraps another handler and also
// writes WARN and ERROR level logs to the audit event log.
type EventLogHandler struct {
	inner  slog.Handler
	events EventWriter
	level  slog.Level // Minimum level to forward (default: WARN)
	attrs  []slog.Attr
	group  string
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, events EventWriter) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, events, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, events EventWriter, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:  inner,
		events: events,
		level:  level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.level
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r); err != nil {
			return err
		}
	}

	if r.Level >= h.level && h.events != nil {
		h.writeToEventLog(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &c
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)
	if name != "" {
		c.group = h.qualifyKey(name)
	}
	return &c
}

func (h *EventLogHandler) qualifyKey(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *EventLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.qualifyKey(a.Key), Value: a.Value}
	}
	return out
}

// writeToEventLog writes a log record to the audit event log. It uses a
// context detached from the request so cancellation does not drop the event.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, r slog.Record) {
	category, metadata := h.collect(r)
	if path := middleware.GetRequestPath(ctx); path != "" {
		if _, ok := metadata["url"]; !ok {
			metadata["url"] = path
		}
	}
	_ = h.events.LogEvent(context.WithoutCancel(ctx), slogLevelToEventLevel(r.Level), category, r.Message, metadata)
}

// slogLevelToEventLevel converts a slog.Level to an audit event level.
func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// collect splits the record attributes into the category and metadata.
// A "category" attribute wins; otherwise it is inferred from the message.
func (h *EventLogHandler) collect(r slog.Record) (string, map[string]any) {
	var category string
	metadata := make(map[string]any, len(h.attrs)+r.NumAttrs())

	add := func(a slog.Attr) {
		if a.Key == "category" {
			category = a.Value.String()
			return
		}
		metadata[a.Key] = a.Value.Resolve().Any()
		if err, ok := metadata[a.Key].(error); ok {
			metadata[a.Key] = err.Error()
		}
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" && a.Key != "category" {
			a.Key = h.qualifyKey(a.Key)
		}
		add(a)
		return true
	})

	if category == "" {
		category = inferCategory(r.Message)
	}
	return category, metadata
}

func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") ||
		strings.Contains(msg, "logout") || strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "csrf"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "account") || strings.Contains(msg, "user"):
		return model.EventCategoryAccount
	case strings.Contains(msg, "detect") || strings.Contains(msg, "classif") ||
		strings.Contains(msg, "stream") || strings.Contains(msg, "emotion"):
		return model.EventCategoryDetection
	default:
		return model.EventCategorySystem
	}
}
