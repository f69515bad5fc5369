// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ostress-go/internal/emotion"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/store"
)

// SystemEventsLimit caps the audit event listing.
const SystemEventsLimit = 100

// EventService writes and lists audit events (the system_events table).
type EventService struct {
	queries *store.Queries
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{
		queries: store.New(db),
	}
}

// LogEvent creates a new audit event.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.queries.CreateSystemEvent(ctx, store.CreateSystemEventParams{
		ID:        uuid.NewString(),
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// Not routed through slog: the event log handler would recurse.
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, metadata)
}

// List returns the newest audit events.
func (s *EventService) List(ctx context.Context) ([]model.SystemEvent, error) {
	rows, err := s.queries.ListSystemEvents(ctx, SystemEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing system events: %w", err)
	}
	events := make([]model.SystemEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, model.SystemEvent{
			ID:        r.ID,
			Level:     r.Level,
			Category:  r.Category,
			Message:   r.Message,
			Metadata:  r.Metadata,
			CreatedAt: r.CreatedAt,
		})
	}
	return events, nil
}

// StressLogService is the append-only stress event log.
type StressLogService struct {
	queries *store.Queries
	now     func() time.Time
}

// NewStressLogService creates a new StressLogService.
func NewStressLogService(db *sql.DB) *StressLogService {
	return &StressLogService{
		queries: store.New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an event. ID and Timestamp are assigned when empty.
func (s *StressLogService) Record(ctx context.Context, e model.StressEvent) (model.StressEvent, error) {
	if !emotion.IsLabel(e.DetectedEmotion) {
		return model.StressEvent{}, fmt.Errorf("%w: %q", ErrInvalidEmotion, e.DetectedEmotion)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	err := s.queries.CreateStressEvent(ctx, store.CreateStressEventParams{
		ID:              e.ID,
		UserID:          e.UserID,
		Username:        e.Username,
		StressLevel:     int64(e.StressLevel),
		DetectedEmotion: e.DetectedEmotion,
		Timestamp:       e.Timestamp.UTC(),
	})
	if err != nil {
		return model.StressEvent{}, fmt.Errorf("recording stress event: %w", err)
	}

	slog.Debug("stress event recorded", "user_id", e.UserID, "stress_level", e.StressLevel, "emotion", e.DetectedEmotion)
	return e, nil
}

// List returns events visible to p, newest first: every subject's events
// for an admin (capped at model.AdminEventsLimit), otherwise only p's own
// (capped at model.UserEventsLimit).
func (s *StressLogService) List(ctx context.Context, p model.Principal) ([]model.StressEvent, error) {
	var (
		rows []store.StressEvent
		err  error
	)
	if p.IsAdmin() {
		rows, err = s.queries.ListRecentStressEvents(ctx, model.AdminEventsLimit)
	} else {
		rows, err = s.queries.ListStressEventsByUser(ctx, store.ListStressEventsByUserParams{
			UserID: p.SubjectID,
			Limit:  model.UserEventsLimit,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("listing stress events: %w", err)
	}

	events := make([]model.StressEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, model.StressEvent{
			ID:              r.ID,
			UserID:          r.UserID,
			Username:        r.Username,
			StressLevel:     int(r.StressLevel),
			DetectedEmotion: r.DetectedEmotion,
			Timestamp:       r.Timestamp,
		})
	}
	return events, nil
}
