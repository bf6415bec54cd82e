package userRepo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/repository/hooks"
	"file-sharing-service/internal/repository/userRepo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDelete struct {
	owner uuid.UUID
	keys  []string
}

func newRepo(t *testing.T) (*userRepo.UserRepo, pgxmock.PgxPoolIface, *[]recordedDelete) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	var calls []recordedDelete
	hook := hooks.DeleteHookFunc(func(_ context.Context, owner uuid.UUID, keys []string) {
		calls = append(calls, recordedDelete{owner: owner, keys: keys})
	})
	return userRepo.New(mock, hook), mock, &calls
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo, mock, _ := newRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(pgxmock.AnyArg(), "alice", "alice@example.com", "hash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := repo.Create(ctx, "alice", "alice@example.com", "hash")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		repo, mock, _ := newRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(pgxmock.AnyArg(), "alice", "alice@example.com", "hash", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.Create(ctx, "alice", "alice@example.com", "hash")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})
}

func TestGetByUsername(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	created := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		repo, mock, _ := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=$1")).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
				AddRow(id.String(), "alice", "alice@example.com", "hash", created))

		u, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "hash", u.Password)
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock, _ := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=$1")).
			WithArgs("bob").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByUsername(ctx, "bob")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("reports cascaded storage keys to the hook", func(t *testing.T) {
		repo, mock, calls := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "storage_key"}).
				AddRow(id.String(), id.String()+"/a.txt").
				AddRow(id.String(), id.String()+"/b.txt"))

		require.NoError(t, repo.Delete(ctx, id))
		require.Len(t, *calls, 1)
		assert.Equal(t, id, (*calls)[0].owner)
		assert.Equal(t, []string{id.String() + "/a.txt", id.String() + "/b.txt"}, (*calls)[0].keys)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user without files", func(t *testing.T) {
		repo, mock, calls := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "storage_key"}).AddRow(id.String(), ""))

		require.NoError(t, repo.Delete(ctx, id))
		require.Len(t, *calls, 1)
		assert.Empty(t, (*calls)[0].keys)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock, calls := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "storage_key"}))

		assert.ErrorIs(t, repo.Delete(ctx, id), apperr.ErrNotFound)
		assert.Empty(t, *calls)
	})

	t.Run("database failure skips the hook", func(t *testing.T) {
		repo, mock, calls := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs(id).
			WillReturnError(errors.New("connection reset"))

		assert.Error(t, repo.Delete(ctx, id))
		assert.Empty(t, *calls)
	})
}
