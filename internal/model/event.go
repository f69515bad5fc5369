// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth      = "auth"
	EventCategoryAccount   = "account"
	EventCategoryDetection = "detection"
	EventCategorySystem    = "system"
)

// SystemEvent is a persisted WARN/ERROR log record.
type SystemEvent struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}

// Page sizes for stress event listings.
const (
	AdminEventsLimit = 50
	UserEventsLimit  = 20
)

// StressEvent is one recorded single-shot detection result. Events are
// append-only.
type StressEvent struct {
	ID              string    `json:"_id"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	StressLevel     int       `json:"stress_level"`
	DetectedEmotion string    `json:"detected_emotion"`
	Timestamp       time.Time `json:"-"`
}

// StressEventView is the listing shape of a StressEvent.
type StressEventView struct {
	ID              string `json:"_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	StressLevel     int    `json:"stress_level"`
	DetectedEmotion string `json:"detected_emotion"`
	Timestamp       string `json:"timestamp"`
}

// View converts the event to its listing shape.
func (e *StressEvent) View() StressEventView {
	return StressEventView{
		ID:              e.ID,
		UserID:          e.UserID,
		Username:        e.Username,
		StressLevel:     e.StressLevel,
		DetectedEmotion: e.DetectedEmotion,
		Timestamp:       FormatTimestamp(e.Timestamp),
	}
}
