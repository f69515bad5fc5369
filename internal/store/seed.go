// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ostress-go/internal/auth"
	"github.com/olegiv/ostress-go/internal/model"
)

// SeedAdmin creates an admin account when the users table holds no admin.
// It is a no-op when username or password is empty.
func SeedAdmin(ctx context.Context, db *sql.DB, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	queries := New(db)

	admins, err := queries.CountUsersByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if admins > 0 {
		slog.Info("admin account already exists, skipping seed")
		return nil
	}

	if _, err := queries.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("seed admin %q already exists as a non-admin account", username)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for seed admin: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := queries.CreateUser(ctx, CreateUserParams{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	slog.Info("created seed admin account", "id", user.ID, "username", user.Username)
	return nil
}
