package userRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/model/user"
	"file-sharing-service/internal/repository/hooks"
	"file-sharing-service/pkg/database/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	conn postgres.DBTX
	hook hooks.DeleteHook
}

// New returns a repository over conn. hook is told about the files removed
// by the cascade when a user is deleted; it may be nil.
func New(conn postgres.DBTX, hook hooks.DeleteHook) *UserRepo {
	return &UserRepo{conn: conn, hook: hook}
}

func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash string) (uuid.UUID, error) {
	query := `INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`
	userID := uuid.New()
	if _, err := r.conn.Exec(ctx, query, userID, username, email, passwordHash, time.Now().UTC()); err != nil {
		if postgres.IsUniqueViolation(err) {
			return uuid.Nil, apperr.New(apperr.ErrConflict, "username or email already registered", err)
		}
		return uuid.Nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return userID, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id=$1`
	return r.scanOne(r.conn.QueryRow(ctx, query, id))
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE email=$1`
	return r.scanOne(r.conn.QueryRow(ctx, query, email))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE username=$1`
	return r.scanOne(r.conn.QueryRow(ctx, query, username))
}

func (r *UserRepo) scanOne(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// deleteUserQuery removes the user in one statement and reports the storage
// keys of the files the FK cascade takes with it. The outer SELECT reads the
// pre-statement snapshot of files, so the keys are still visible.
const deleteUserQuery = `
WITH removed AS (
	DELETE FROM users WHERE id = $1 RETURNING id
)
SELECT r.id, COALESCE(f.storage_key, '')
FROM removed r
LEFT JOIN files f ON f.owner_id = r.id`

// Delete removes the user and, by cascade, all of their files. It returns
// apperr.ErrNotFound when there was no such user.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := r.conn.Query(ctx, deleteUserQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	defer rows.Close()

	found := false
	var keys []string
	for rows.Next() {
		var (
			removedID string
			key       string
		)
		if err := rows.Scan(&removedID, &key); err != nil {
			return fmt.Errorf("failed to scan deleted user: %w", err)
		}
		found = true
		if key != "" {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !found {
		return apperr.ErrNotFound
	}

	if r.hook != nil {
		r.hook.FilesDeleted(ctx, id, keys)
	}
	return nil
}
