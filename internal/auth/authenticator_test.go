// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/olegiv/ostress-go/internal/model"
)

type fakeAccounts struct {
	byName   map[string]model.Account
	lookups  int
	created  []model.NewAccount
	rehashed map[int64]string
	findErr  error
}

func newFakeAccounts(t *testing.T, accounts ...model.Account) *fakeAccounts {
	t.Helper()
	f := &fakeAccounts{byName: make(map[string]model.Account), rehashed: make(map[int64]string)}
	for _, a := range accounts {
		f.byName[a.Username] = a
	}
	return f
}

func (f *fakeAccounts) FindByUsername(_ context.Context, username string) (model.Account, error) {
	f.lookups++
	if f.findErr != nil {
		return model.Account{}, f.findErr
	}
	a, ok := f.byName[username]
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccounts) Create(_ context.Context, in model.NewAccount) (model.Account, error) {
	f.created = append(f.created, in)
	return model.Account{ID: int64(len(f.created)), Username: in.Username, Role: in.Role}, nil
}

func (f *fakeAccounts) SetPasswordHash(_ context.Context, id int64, hash string) error {
	f.rehashed[id] = hash
	return nil
}

func mustHash(t *testing.T, p HashParams, password string) string {
	t.Helper()
	h, err := p.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return h
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthenticate_Account(t *testing.T) {
	accounts := newFakeAccounts(t, model.Account{
		ID:           7,
		Username:     "alice",
		PasswordHash: mustHash(t, DefaultHashParams, "wonderland"),
		Role:         model.RoleUser,
	})
	a := NewAuthenticator(accounts, SuperAdmin{}, quietLogger())

	p, err := a.Authenticate(context.Background(), "alice", "wonderland")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	want := model.Principal{SubjectID: "7", Username: "alice", Role: model.RoleUser}
	if p != want {
		t.Errorf("principal = %+v, want %+v", p, want)
	}
	if len(accounts.rehashed) != 0 {
		t.Error("current hash was rehashed")
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	accounts := newFakeAccounts(t,
		model.Account{ID: 1, Username: "alice", PasswordHash: mustHash(t, DefaultHashParams, "wonderland")},
		model.Account{ID: 2, Username: "broken", PasswordHash: "not-a-hash"},
	)
	a := NewAuthenticator(accounts, SuperAdmin{Username: "admin", Password: "secret"}, quietLogger())

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"empty username", "", "x", ErrBadRequest},
		{"empty password", "alice", "", ErrBadRequest},
		{"wrong password", "alice", "nope", ErrInvalidCredentials},
		{"unknown account", "bob", "x", ErrInvalidCredentials},
		{"malformed stored hash", "broken", "x", ErrInvalidCredentials},
		{"super admin wrong password", "admin", "guess", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate_StoreError(t *testing.T) {
	accounts := newFakeAccounts(t)
	accounts.findErr = errors.New("disk on fire")
	a := NewAuthenticator(accounts, SuperAdmin{}, quietLogger())

	_, err := a.Authenticate(context.Background(), "alice", "pw")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want a wrapped store error", err)
	}
	if !errors.Is(err, accounts.findErr) {
		t.Errorf("store error not wrapped: %v", err)
	}
}

func TestAuthenticate_SuperAdmin(t *testing.T) {
	accounts := newFakeAccounts(t)
	a := NewAuthenticator(accounts, SuperAdmin{Username: "admin", Password: "secret"}, quietLogger())

	if !a.SuperAdminEnabled() {
		t.Fatal("SuperAdminEnabled = false")
	}
	if !a.IsSuperAdmin("admin", "secret") || a.IsSuperAdmin("admin", "secreT") {
		t.Error("IsSuperAdmin mismatch")
	}

	p, err := a.Authenticate(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.SubjectID != model.SuperAdminSubject || p.Role != model.RoleAdmin {
		t.Errorf("principal = %+v", p)
	}
	if accounts.lookups != 0 {
		t.Errorf("account store consulted %d times", accounts.lookups)
	}
}

func TestAuthenticate_SuperAdminDisabled(t *testing.T) {
	a := NewAuthenticator(newFakeAccounts(t), SuperAdmin{Username: "admin"}, quietLogger())
	if a.SuperAdminEnabled() {
		t.Error("empty password must disable the super admin")
	}
	if a.IsSuperAdmin("admin", "") {
		t.Error("empty password matched")
	}
}

func TestAuthenticate_Rehash(t *testing.T) {
	old := HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	accounts := newFakeAccounts(t, model.Account{
		ID:           3,
		Username:     "carol",
		PasswordHash: mustHash(t, old, "legacy"),
		Role:         model.RoleAdmin,
	})
	a := NewAuthenticator(accounts, SuperAdmin{}, quietLogger())

	p, err := a.Authenticate(context.Background(), "carol", "legacy")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Role != model.RoleAdmin {
		t.Errorf("role = %q", p.Role)
	}

	hash, ok := accounts.rehashed[3]
	if !ok {
		t.Fatal("legacy hash was not upgraded")
	}
	if NeedsRehash(hash) {
		t.Error("upgraded hash still needs rehash")
	}
	if valid, _ := CheckPassword("legacy", hash); !valid {
		t.Error("upgraded hash does not verify")
	}
}

func TestRegister_ForcesUserRole(t *testing.T) {
	accounts := newFakeAccounts(t)
	a := NewAuthenticator(accounts, SuperAdmin{}, nil)

	acc, err := a.Register(context.Background(), "  dave ", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Role != model.RoleUser {
		t.Errorf("role = %q, want user", acc.Role)
	}
	if len(accounts.created) != 1 || accounts.created[0].Username != "dave" {
		t.Errorf("created = %+v", accounts.created)
	}
}
