// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "ostress-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, q *Queries, username, role string) User {
	t.Helper()
	u, err := q.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return u
}

func TestCreateUser(t *testing.T) {
	q := New(testDB(t))

	user := createUser(t, q, "alice", "user")
	if user.ID == 0 {
		t.Error("user.ID should not be 0")
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
	if user.Email.Valid {
		t.Errorf("Email should be NULL, got %q", user.Email.String)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	q := New(testDB(t))
	createUser(t, q, "alice", "user")

	_, err := q.CreateUser(context.Background(), CreateUserParams{
		Username: "alice", PasswordHash: "x", Role: "user", CreatedAt: time.Now(),
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestCreateUser_RoleConstraint(t *testing.T) {
	q := New(testDB(t))

	_, err := q.CreateUser(context.Background(), CreateUserParams{
		Username: "eve", PasswordHash: "x", Role: "editor", CreatedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for role editor")
	}
}

func TestGetUserByUsername(t *testing.T) {
	q := New(testDB(t))
	created := createUser(t, q, "bob", "admin")

	got, err := q.GetUserByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != created.ID || got.Role != "admin" {
		t.Errorf("got %+v, want id %d role admin", got, created.ID)
	}

	_, err = q.GetUserByUsername(context.Background(), "nobody")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpdateUser_LastAdminGuard(t *testing.T) {
	ctx := context.Background()
	q := New(testDB(t))
	admin := createUser(t, q, "root", "admin")

	n, err := q.UpdateUser(ctx, UpdateUserParams{ID: admin.ID, SetRole: true, Role: "user", SetEmail: true, Email: sql.NullString{String: "x@y.z", Valid: true}})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if n != 0 {
		t.Fatalf("demoting the only admin changed %d rows, want 0", n)
	}

	got, _ := q.GetUserByID(ctx, admin.ID)
	if got.Role != "admin" || got.Email.Valid {
		t.Errorf("row changed despite guard: %+v", got)
	}

	second := createUser(t, q, "root2", "admin")
	n, err = q.UpdateUser(ctx, UpdateUserParams{ID: second.ID, SetRole: true, Role: "user"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if n != 1 {
		t.Errorf("demoting one of two admins changed %d rows, want 1", n)
	}
}

func TestUpdateUser_PartialFields(t *testing.T) {
	ctx := context.Background()
	q := New(testDB(t))
	u := createUser(t, q, "carol", "user")

	n, err := q.UpdateUser(ctx, UpdateUserParams{ID: u.ID, SetUsername: true, Username: "caroline"})
	if err != nil || n != 1 {
		t.Fatalf("UpdateUser: n=%d err=%v", n, err)
	}

	got, _ := q.GetUserByID(ctx, u.ID)
	if got.Username != "caroline" || got.PasswordHash != "hash" || got.Role != "user" {
		t.Errorf("unexpected row after partial update: %+v", got)
	}
}

func TestDeleteNonAdminUser(t *testing.T) {
	ctx := context.Background()
	q := New(testDB(t))
	admin := createUser(t, q, "root", "admin")
	user := createUser(t, q, "dave", "user")

	if n, _ := q.DeleteNonAdminUser(ctx, admin.ID); n != 0 {
		t.Errorf("admin row deleted")
	}
	if n, _ := q.DeleteNonAdminUser(ctx, user.ID); n != 1 {
		t.Errorf("user row not deleted")
	}
	if count, _ := q.CountUsers(ctx); count != 1 {
		t.Errorf("CountUsers = %d, want 1", count)
	}
}

func TestStressEvents_OrderAndScope(t *testing.T) {
	ctx := context.Background()
	q := New(testDB(t))
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	events := []CreateStressEventParams{
		{ID: "e1", UserID: "1", Username: "a", StressLevel: 30, DetectedEmotion: "Happy", Timestamp: base},
		{ID: "e2", UserID: "2", Username: "b", StressLevel: 80, DetectedEmotion: "Fear", Timestamp: base.Add(time.Minute)},
		{ID: "e3", UserID: "1", Username: "a", StressLevel: 60, DetectedEmotion: "Sad", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := q.CreateStressEvent(ctx, e); err != nil {
			t.Fatalf("CreateStressEvent: %v", err)
		}
	}

	all, err := q.ListRecentStressEvents(ctx, 50)
	if err != nil {
		t.Fatalf("ListRecentStressEvents: %v", err)
	}
	if len(all) != 3 || all[0].ID != "e3" || all[2].ID != "e1" {
		t.Errorf("unexpected order: %+v", all)
	}

	mine, err := q.ListStressEventsByUser(ctx, ListStressEventsByUserParams{UserID: "1", Limit: 20})
	if err != nil {
		t.Fatalf("ListStressEventsByUser: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("got %d events, want 2", len(mine))
	}
	for _, e := range mine {
		if e.UserID != "1" {
			t.Errorf("event %s belongs to %s", e.ID, e.UserID)
		}
	}
}

func TestStressEvents_LevelConstraint(t *testing.T) {
	q := New(testDB(t))
	err := q.CreateStressEvent(context.Background(), CreateStressEventParams{
		ID: "bad", UserID: "1", Username: "a", StressLevel: 101, DetectedEmotion: "Angry", Timestamp: time.Now(),
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for stress_level 101")
	}
}

func TestInTx_Rollback(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	sentinel := errors.New("abort")
	err := InTx(ctx, db, func(q *Queries) error {
		createUser(t, q, "ghost", "user")
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("InTx error = %v, want sentinel", err)
	}
	if n, _ := New(db).CountUsers(ctx); n != 0 {
		t.Errorf("CountUsers = %d after rollback, want 0", n)
	}
}

func TestAvailability(t *testing.T) {
	db := testDB(t)
	a := NewAvailability(db, time.Second)

	if err := a.Check(); err != nil {
		t.Fatalf("fresh tracker should be available: %v", err)
	}

	a.MarkDown()
	if !errors.Is(a.Check(), ErrUnavailable) {
		t.Fatal("expected ErrUnavailable after MarkDown")
	}

	if err := a.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := a.Check(); err != nil {
		t.Errorf("expected available after successful ping: %v", err)
	}

	_ = db.Close()
	if err := a.Ping(context.Background()); err == nil {
		t.Error("expected ping failure on closed db")
	}
	if !errors.Is(a.Check(), ErrUnavailable) {
		t.Error("expected ErrUnavailable after failed ping")
	}
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if err := SeedAdmin(ctx, db, "", ""); err != nil {
		t.Fatalf("SeedAdmin with empty creds: %v", err)
	}
	if err := SeedAdmin(ctx, db, "boss", "s3cret-pass"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if err := SeedAdmin(ctx, db, "boss2", "s3cret-pass"); err != nil {
		t.Fatalf("second SeedAdmin: %v", err)
	}

	n, _ := New(db).CountUsersByRole(ctx, "admin")
	if n != 1 {
		t.Errorf("admin count = %d, want 1", n)
	}
}
