// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import "errors"

// Account store errors.
var (
	ErrMissingFields          = errors.New("username and password are required")
	ErrInvalidUsername        = errors.New("username contains invalid characters")
	ErrInvalidEmail           = errors.New("email contains invalid characters")
	ErrInvalidRole            = errors.New("invalid role")
	ErrDuplicateUsername      = errors.New("username already exists")
	ErrNotFound               = errors.New("user not found")
	ErrNoChanges              = errors.New("no updates provided")
	ErrLastAdminProtected     = errors.New("at least one admin must remain")
	ErrAdminDeletionForbidden = errors.New("admin accounts cannot be deleted")
)

// ErrInvalidEmotion is returned when a stress event names no known label.
var ErrInvalidEmotion = errors.New("unknown emotion label")
