// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const stressEventColumns = `id, user_id, username, stress_level, detected_emotion, timestamp`

const createStressEvent = `-- name: CreateStressEvent :exec
INSERT INTO stress_events (id, user_id, username, stress_level, detected_emotion, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateStressEventParams are the inputs of CreateStressEvent.
type CreateStressEventParams struct {
	ID              string
	UserID          string
	Username        string
	StressLevel     int64
	DetectedEmotion string
	Timestamp       time.Time
}

// CreateStressEvent appends a stress event row.
func (q *Queries) CreateStressEvent(ctx context.Context, arg CreateStressEventParams) error {
	_, err := q.db.ExecContext(ctx, createStressEvent,
		arg.ID,
		arg.UserID,
		arg.Username,
		arg.StressLevel,
		arg.DetectedEmotion,
		arg.Timestamp,
	)
	return err
}

const listRecentStressEvents = `-- name: ListRecentStressEvents :many
SELECT ` + stressEventColumns + ` FROM stress_events
ORDER BY timestamp DESC
LIMIT ?`

// ListRecentStressEvents returns the newest events of all users.
func (q *Queries) ListRecentStressEvents(ctx context.Context, limit int64) ([]StressEvent, error) {
	return q.queryStressEvents(ctx, listRecentStressEvents, limit)
}

const listStressEventsByUser = `-- name: ListStressEventsByUser :many
SELECT ` + stressEventColumns + ` FROM stress_events
WHERE user_id = ?
ORDER BY timestamp DESC
LIMIT ?`

// ListStressEventsByUserParams are the inputs of ListStressEventsByUser.
type ListStressEventsByUserParams struct {
	UserID string
	Limit  int64
}

// ListStressEventsByUser returns the newest events recorded for one subject.
func (q *Queries) ListStressEventsByUser(ctx context.Context, arg ListStressEventsByUserParams) ([]StressEvent, error) {
	return q.queryStressEvents(ctx, listStressEventsByUser, arg.UserID, arg.Limit)
}

func (q *Queries) queryStressEvents(ctx context.Context, query string, args ...any) ([]StressEvent, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []StressEvent
	for rows.Next() {
		var e StressEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.StressLevel, &e.DetectedEmotion, &e.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
