// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/ostress-go/internal/model"
)

// Authentication errors.
var (
	ErrBadRequest         = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrAccountNotFound must be returned by Accounts.FindByUsername when no
// account has the username.
var ErrAccountNotFound = errors.New("account not found")

// Accounts is the account store capability the Authenticator needs.
type Accounts interface {
	FindByUsername(ctx context.Context, username string) (model.Account, error)
	Create(ctx context.Context, in model.NewAccount) (model.Account, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}

// SuperAdmin is a credential pair held outside the account store. An empty
// password disables it.
type SuperAdmin struct {
	Username string
	Password string
}

func (s SuperAdmin) matches(username, password string) bool {
	if s.Username == "" || s.Password == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(username), []byte(s.Username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(s.Password))
	return u&p == 1
}

// Authenticator resolves credentials to a Principal and registers new
// self-service accounts.
type Authenticator struct {
	accounts   Accounts
	superAdmin SuperAdmin
	logger     *slog.Logger
}

// NewAuthenticator creates an Authenticator backed by accounts.
func NewAuthenticator(accounts Accounts, superAdmin SuperAdmin, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		accounts:   accounts,
		superAdmin: superAdmin,
		logger:     logger,
	}
}

// SuperAdminEnabled reports whether a super-admin credential is configured.
func (a *Authenticator) SuperAdminEnabled() bool {
	return a.superAdmin.Username != "" && a.superAdmin.Password != ""
}

// IsSuperAdmin reports whether the pair is the configured super-admin
// credential.
func (a *Authenticator) IsSuperAdmin(username, password string) bool {
	return a.superAdmin.matches(username, password)
}

// Authenticate checks username and password. The super-admin credential is
// tried first and never touches the account store.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (model.Principal, error) {
	if username == "" || password == "" {
		return model.Principal{}, ErrBadRequest
	}

	if a.superAdmin.matches(username, password) {
		return model.Principal{
			SubjectID: model.SuperAdminSubject,
			Username:  username,
			Role:      model.RoleAdmin,
		}, nil
	}

	account, err := a.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return model.Principal{}, ErrInvalidCredentials
		}
		return model.Principal{}, fmt.Errorf("looking up account: %w", err)
	}

	valid, err := CheckPassword(password, account.PasswordHash)
	if err != nil {
		a.logger.Error("password check error", "error", err, "user_id", account.ID)
		return model.Principal{}, ErrInvalidCredentials
	}
	if !valid {
		return model.Principal{}, ErrInvalidCredentials
	}

	if NeedsRehash(account.PasswordHash) {
		a.rehash(ctx, account.ID, password)
	}

	role := account.Role
	if role == "" {
		role = model.RoleUser
	}
	return model.Principal{
		SubjectID: account.SubjectID(),
		Username:  account.Username,
		Role:      role,
	}, nil
}

// rehash upgrades a stored hash to the current parameters. Failure does not
// block the login.
func (a *Authenticator) rehash(ctx context.Context, id int64, password string) {
	hash, err := HashPassword(password)
	if err != nil {
		a.logger.Error("failed to re-hash password", "error", err, "user_id", id)
		return
	}
	if err := a.accounts.SetPasswordHash(ctx, id, hash); err != nil {
		a.logger.Error("failed to store re-hashed password", "error", err, "user_id", id)
		return
	}
	a.logger.Info("password re-hashed with updated parameters", "user_id", id)
}

// Register creates a self-service account. The role is always user,
// whatever the caller asked for.
func (a *Authenticator) Register(ctx context.Context, username, password string) (model.Account, error) {
	return a.accounts.Create(ctx, model.NewAccount{
		Username: strings.TrimSpace(username),
		Password: password,
		Role:     model.RoleUser,
	})
}
