// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const createSystemEvent = `-- name: CreateSystemEvent :exec
INSERT INTO system_events (id, level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateSystemEventParams are the inputs of CreateSystemEvent.
type CreateSystemEventParams struct {
	ID        string
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateSystemEvent inserts a system event row.
func (q *Queries) CreateSystemEvent(ctx context.Context, arg CreateSystemEventParams) error {
	_, err := q.db.ExecContext(ctx, createSystemEvent,
		arg.ID,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.Metadata,
		arg.CreatedAt,
	)
	return err
}

const listSystemEvents = `-- name: ListSystemEvents :many
SELECT id, level, category, message, metadata, created_at FROM system_events
ORDER BY created_at DESC
LIMIT ?`

// ListSystemEvents returns the newest system events.
func (q *Queries) ListSystemEvents(ctx context.Context, limit int64) ([]SystemEvent, error) {
	rows, err := q.db.QueryContext(ctx, listSystemEvents, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []SystemEvent
	for rows.Next() {
		var e SystemEvent
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
