// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (username, email, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + userColumns

// CreateUserParams are the inputs of CreateUser.
type CreateUserParams struct {
	Username     string
	Email        sql.NullString
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateUser inserts a user row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.CreatedAt,
	)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUserByID returns the user with the given id or sql.ErrNoRows.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByUsername = `-- name: GetUserByUsername :one
SELECT ` + userColumns + ` FROM users WHERE username = ?`

// GetUserByUsername returns the user with the given username or sql.ErrNoRows.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users ORDER BY id`

// ListUsers returns every user row.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUsers = `-- name: CountUsers :one
SELECT COUNT(*) FROM users`

// CountUsers returns the number of user rows.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

const countUsersByRole = `-- name: CountUsersByRole :one
SELECT COUNT(*) FROM users WHERE role = ?`

// CountUsersByRole returns the number of users holding role.
func (q *Queries) CountUsersByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsersByRole, role).Scan(&n)
	return n, err
}

// updateUser applies a partial update. A role change away from admin only
// matches while another admin exists; the admin count is read by the same
// statement that writes the row, so two concurrent demotions cannot both
// pass.
const updateUser = `-- name: UpdateUser :execrows
UPDATE users SET
    username = CASE WHEN ?1 THEN ?2 ELSE username END,
    email = CASE WHEN ?3 THEN ?4 ELSE email END,
    role = CASE WHEN ?5 THEN ?6 ELSE role END,
    password_hash = CASE WHEN ?7 THEN ?8 ELSE password_hash END
WHERE id = ?9
  AND (
    NOT ?5
    OR ?6 = 'admin'
    OR role != 'admin'
    OR (SELECT COUNT(*) FROM users WHERE role = 'admin') > 1
  )`

// UpdateUserParams are the inputs of UpdateUser. Each Set* flag selects
// whether the matching column is written.
type UpdateUserParams struct {
	ID              int64
	SetUsername     bool
	Username        string
	SetEmail        bool
	Email           sql.NullString
	SetRole         bool
	Role            string
	SetPasswordHash bool
	PasswordHash    string
}

// UpdateUser writes the selected columns and returns the number of rows
// changed. Zero means the row is missing or the update would have demoted
// the last admin.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUser,
		arg.SetUsername, arg.Username,
		arg.SetEmail, arg.Email,
		arg.SetRole, arg.Role,
		arg.SetPasswordHash, arg.PasswordHash,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNonAdminUser = `-- name: DeleteNonAdminUser :execrows
DELETE FROM users WHERE id = ? AND role != 'admin'`

// DeleteNonAdminUser removes the user unless it holds the admin role.
func (q *Queries) DeleteNonAdminUser(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteNonAdminUser, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
