// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// User is a row of the users table.
type User struct {
	ID           int64
	Username     string
	Email        sql.NullString
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// StressEvent is a row of the stress_events table.
type StressEvent struct {
	ID              string
	UserID          string
	Username        string
	StressLevel     int64
	DetectedEmotion string
	Timestamp       time.Time
}

// SystemEvent is a row of the system_events table.
type SystemEvent struct {
	ID        string
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}
