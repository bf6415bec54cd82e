package fileRepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/model/fileInfo"
	"file-sharing-service/internal/repository/hooks"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fileColumns = []string{"id", "owner_id", "filename", "extension", "storage_key", "size", "content_type", "uploaded_at", "updated_at"}

func newTestRepo(t *testing.T) (*FileRepository, pgxmock.PgxPoolIface, *[][]string) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	var deleted [][]string
	hook := hooks.DeleteHookFunc(func(_ context.Context, _ uuid.UUID, keys []string) {
		deleted = append(deleted, keys)
	})
	return New(mock, hook), mock, &deleted
}

func TestBuildListQuery(t *testing.T) {
	owner := uuid.New()

	t.Run("owner only", func(t *testing.T) {
		q, args := buildListQuery(owner, fileInfo.Filter{})
		assert.Contains(t, q, "WHERE owner_id = $1 ORDER BY")
		assert.Equal(t, []any{owner}, args)
	})

	t.Run("all filters are conjunctive", func(t *testing.T) {
		f := fileInfo.Filter{Filename: "Q3_report%", Extension: "PDF", ContentType: "Application/PDF"}.Canonical()
		q, args := buildListQuery(owner, f)
		assert.Contains(t, q, `owner_id = $1 AND filename ILIKE $2 ESCAPE '\' AND extension = $3 AND lower(content_type) = $4`)
		assert.Equal(t, []any{owner, `%q3\_report\%%`, ".pdf", "application/pdf"}, args)
	})

	t.Run("placeholders stay dense", func(t *testing.T) {
		q, args := buildListQuery(owner, fileInfo.Filter{ContentType: "text/plain"})
		assert.Contains(t, q, "lower(content_type) = $2")
		assert.Len(t, args, 2)
	})
}

func TestCreateFile(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	now := time.Now().UTC()
	f := &fileInfo.File{
		ID: uuid.New(), OwnerID: uuid.New(), Filename: "report.pdf", Extension: ".pdf",
		StorageKey: "o/k.pdf", Size: 3, ContentType: "application/pdf", UploadedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO files")).
		WithArgs(f.ID, f.OwnerID, f.Filename, f.Extension, f.StorageKey, f.Size, f.ContentType, f.UploadedAt, f.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateFile(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFilesByOwner(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	owner := uuid.New()
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE owner_id = $1 AND extension = $2")).
		WithArgs(owner, ".pdf").
		WillReturnRows(pgxmock.NewRows(fileColumns).
			AddRow(id.String(), owner.String(), "report.pdf", ".pdf", owner.String()+"/x.pdf", int64(42), "application/pdf", now, now))

	files, err := repo.ListFilesByOwner(context.Background(), owner, fileInfo.Filter{Extension: "pdf"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, id, files[0].ID)
	assert.Equal(t, int64(42), files[0].Size)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFilesByOwner(t *testing.T) {
	owner := uuid.New()

	t.Run("returns count and fires hook", func(t *testing.T) {
		repo, mock, deleted := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE owner_id = $1 RETURNING storage_key")).
			WithArgs(owner).
			WillReturnRows(pgxmock.NewRows([]string{"storage_key"}).AddRow("a").AddRow("b"))

		n, err := repo.DeleteFilesByOwner(context.Background(), owner)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Equal(t, [][]string{{"a", "b"}}, *deleted)
	})

	t.Run("empty set still succeeds", func(t *testing.T) {
		repo, mock, deleted := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE owner_id = $1")).
			WithArgs(owner).
			WillReturnRows(pgxmock.NewRows([]string{"storage_key"}))

		n, err := repo.DeleteFilesByOwner(context.Background(), owner)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, *deleted, 1)
	})

	t.Run("failure aborts before cleanup", func(t *testing.T) {
		repo, mock, deleted := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE owner_id = $1")).
			WithArgs(owner).
			WillReturnError(errors.New("deadlock detected"))

		_, err := repo.DeleteFilesByOwner(context.Background(), owner)
		assert.Error(t, err)
		assert.Empty(t, *deleted)
	})
}

func TestDeleteFile(t *testing.T) {
	owner, id := uuid.New(), uuid.New()

	t.Run("found", func(t *testing.T) {
		repo, mock, deleted := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE id = $1 AND owner_id = $2")).
			WithArgs(id, owner).
			WillReturnRows(pgxmock.NewRows([]string{"storage_key"}).AddRow("k"))

		require.NoError(t, repo.DeleteFile(context.Background(), owner, id))
		assert.Equal(t, [][]string{{"k"}}, *deleted)
	})

	t.Run("not owned", func(t *testing.T) {
		repo, mock, deleted := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM files WHERE id = $1 AND owner_id = $2")).
			WithArgs(id, owner).
			WillReturnRows(pgxmock.NewRows([]string{"storage_key"}))

		err := repo.DeleteFile(context.Background(), owner, id)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, *deleted)
	})
}
