// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the business rules on top of the store: account
// management with its admin invariants, the stress event log and the audit
// event log.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/olegiv/ostress-go/internal/auth"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/store"
)

// MaxUsernameLength is the maximum username length in runes.
const MaxUsernameLength = 64

// AccountService manages accounts and enforces the admin invariants:
// admins are never deleted and the last admin is never demoted.
type AccountService struct {
	db      *sql.DB
	queries *store.Queries
	policy  *bluemonday.Policy
	hash    func(string) (string, error)
	now     func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:      db,
		queries: store.New(db),
		policy:  bluemonday.StrictPolicy(),
		hash:    auth.HashPassword,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FindByUsername returns the account with username or auth.ErrAccountNotFound.
func (s *AccountService) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	u, err := s.queries.GetUserByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, auth.ErrAccountNotFound
		}
		return model.Account{}, err
	}
	return accountFromRow(u), nil
}

// Get returns the account with id or ErrNotFound.
func (s *AccountService) Get(ctx context.Context, id int64) (model.Account, error) {
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	return accountFromRow(u), nil
}

// List returns every account.
func (s *AccountService) List(ctx context.Context) ([]model.Account, error) {
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	accounts := make([]model.Account, 0, len(rows))
	for _, u := range rows {
		accounts = append(accounts, accountFromRow(u))
	}
	return accounts, nil
}

// Create validates and inserts a new account with a freshly hashed password.
func (s *AccountService) Create(ctx context.Context, in model.NewAccount) (model.Account, error) {
	username := normalizeUsername(in.Username)
	if username == "" || strings.TrimSpace(in.Password) == "" {
		return model.Account{}, ErrMissingFields
	}
	if err := s.validateUsername(username); err != nil {
		return model.Account{}, err
	}

	role := strings.ToLower(in.Role)
	if role == "" {
		role = model.RoleUser
	}
	if !model.IsValidRole(role) {
		return model.Account{}, ErrInvalidRole
	}

	email, err := s.emailParam(in.Email)
	if err != nil {
		return model.Account{}, err
	}

	passwordHash, err := s.hash(in.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	u, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return model.Account{}, ErrDuplicateUsername
		}
		return model.Account{}, fmt.Errorf("creating user: %w", err)
	}
	return accountFromRow(u), nil
}

// Update applies a partial update. Either every field is written or none:
// a demotion of the last admin rejects the whole update.
func (s *AccountService) Update(ctx context.Context, id int64, upd model.AccountUpdate) (model.Account, error) {
	if upd.Empty() {
		return model.Account{}, ErrNoChanges
	}

	params := store.UpdateUserParams{ID: id}

	if upd.Username != nil {
		username := normalizeUsername(*upd.Username)
		if username == "" {
			return model.Account{}, ErrMissingFields
		}
		if err := s.validateUsername(username); err != nil {
			return model.Account{}, err
		}
		params.SetUsername = true
		params.Username = username
	}

	if upd.Email != nil || upd.ClearEmail {
		email, err := s.emailParam(upd.Email)
		if err != nil {
			return model.Account{}, err
		}
		params.SetEmail = true
		params.Email = email
	}

	if upd.Role != nil {
		role := strings.ToLower(*upd.Role)
		if role == "" {
			role = model.RoleUser
		}
		if !model.IsValidRole(role) {
			return model.Account{}, ErrInvalidRole
		}
		params.SetRole = true
		params.Role = role
	}

	if upd.Password != nil && strings.TrimSpace(*upd.Password) != "" {
		passwordHash, err := s.hash(*upd.Password)
		if err != nil {
			return model.Account{}, fmt.Errorf("hashing password: %w", err)
		}
		params.SetPasswordHash = true
		params.PasswordHash = passwordHash
	}

	if !params.SetUsername && !params.SetEmail && !params.SetRole && !params.SetPasswordHash {
		return model.Account{}, ErrNoChanges
	}

	var updated store.User
	err := store.InTx(ctx, s.db, func(q *store.Queries) error {
		n, err := q.UpdateUser(ctx, params)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return ErrDuplicateUsername
			}
			return fmt.Errorf("updating user: %w", err)
		}

		updated, err = q.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if n == 0 {
			// The row exists, so only the admin guard can have blocked it.
			return ErrLastAdminProtected
		}
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}
	return accountFromRow(updated), nil
}

// SetPasswordHash replaces the stored hash without touching other fields.
func (s *AccountService) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	n, err := s.queries.UpdateUser(ctx, store.UpdateUserParams{
		ID:              id,
		SetPasswordHash: true,
		PasswordHash:    hash,
	})
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a non-admin account. Admin accounts can never be deleted,
// whatever the number of remaining admins.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	return store.InTx(ctx, s.db, func(q *store.Queries) error {
		n, err := q.DeleteNonAdminUser(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		if n == 1 {
			return nil
		}

		if _, err := q.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}
		return ErrAdminDeletionForbidden
	})
}

func (s *AccountService) validateUsername(username string) error {
	if len([]rune(username)) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if s.policy.Sanitize(username) != username {
		return ErrInvalidUsername
	}
	return nil
}

func (s *AccountService) emailParam(email *string) (sql.NullString, error) {
	if email == nil {
		return sql.NullString{}, nil
	}
	v := strings.TrimSpace(*email)
	if v == "" {
		return sql.NullString{}, nil
	}
	if s.policy.Sanitize(v) != v {
		return sql.NullString{}, ErrInvalidEmail
	}
	return sql.NullString{String: v, Valid: true}, nil
}

// normalizeUsername trims and NFC-normalizes a username so visually equal
// names collide on the unique index.
func normalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

func accountFromRow(u store.User) model.Account {
	a := model.Account{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
	if u.Email.Valid {
		email := u.Email.String
		a.Email = &email
	}
	return a
}
