// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including Account, StressEvent, SystemEvent and the closed role and emotion sets.
package model

import (
	"strconv"
	"time"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRoles contains all valid account roles.
var ValidRoles = []string{RoleUser, RoleAdmin}

// IsValidRole reports whether role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// SuperAdminSubject is the subject id of sessions created from the configured
// super-admin credential. It never refers to an Account row.
const SuperAdminSubject = "admin"

// Account represents a stored user account.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin returns true if the account has admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SubjectID returns the session subject id for this account.
func (a *Account) SubjectID() string {
	return strconv.FormatInt(a.ID, 10)
}

// AccountView is the listing shape of an Account. The password hash is
// never part of it and created_at is an ISO-8601 string.
type AccountView struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"created_at"`
}

// View converts the account to its listing shape.
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: FormatTimestamp(a.CreatedAt),
	}
}

// FormatTimestamp renders t as an ISO-8601 string in UTC.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Principal is the identity carried by an authenticated session.
type Principal struct {
	SubjectID string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// IsAdmin returns true if the principal has admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// NewAccount holds the inputs for creating an account.
type NewAccount struct {
	Username string
	Password string
	Email    *string
	Role     string
}

// AccountUpdate is a partial account update. Nil fields are left unchanged.
type AccountUpdate struct {
	Username *string
	Email    *string
	// ClearEmail sets the email to NULL when true and Email is nil.
	ClearEmail bool
	Role       *string
	Password   *string
}

// Empty reports whether the update carries no recognized field.
func (u AccountUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && !u.ClearEmail && u.Role == nil && u.Password == nil
}
