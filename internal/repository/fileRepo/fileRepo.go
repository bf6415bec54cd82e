package fileRepo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/model/fileInfo"
	"file-sharing-service/internal/repository/hooks"
	"file-sharing-service/pkg/database/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type FileRepository struct {
	conn postgres.DBTX
	hook hooks.DeleteHook
}

// New returns a repository over db. hook runs after every committed delete;
// it may be nil.
func New(db postgres.DBTX, hook hooks.DeleteHook) *FileRepository {
	return &FileRepository{conn: db, hook: hook}
}

func (r *FileRepository) CreateFile(ctx context.Context, file *fileInfo.File) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO files (id, owner_id, filename, extension, storage_key, size, content_type, uploaded_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		file.ID, file.OwnerID, file.Filename, file.Extension, file.StorageKey,
		file.Size, file.ContentType, file.UploadedAt, file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert file %s: %w", file.StorageKey, err)
	}
	return nil
}

const selectFiles = `SELECT id, owner_id, filename, extension, storage_key, size, content_type, uploaded_at, updated_at FROM files`

// ListFilesByOwner returns the owner's files matching every non-empty field
// of filter. The filter is canonicalised first.
func (r *FileRepository) ListFilesByOwner(ctx context.Context, ownerID uuid.UUID, filter fileInfo.Filter) ([]*fileInfo.File, error) {
	query, args := buildListQuery(ownerID, filter.Canonical())
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*fileInfo.File
	for rows.Next() {
		var file fileInfo.File
		if err := rows.Scan(
			&file.ID, &file.OwnerID, &file.Filename, &file.Extension, &file.StorageKey,
			&file.Size, &file.ContentType, &file.UploadedAt, &file.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func buildListQuery(ownerID uuid.UUID, f fileInfo.Filter) (string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Filename != "" {
		add(`filename ILIKE ? ESCAPE '\'`, "%"+escapeLike(f.Filename)+"%")
	}
	if f.Extension != "" {
		add("extension = ?", f.Extension)
	}
	if f.ContentType != "" {
		add("lower(content_type) = ?", f.ContentType)
	}
	return selectFiles + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY uploaded_at DESC, id", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DeleteFilesByOwner removes every file of the owner in one statement and
// returns how many rows went away. The hook always runs after success, even
// for zero rows, so the owner's cache is purged either way.
func (r *FileRepository) DeleteFilesByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	rows, err := r.conn.Query(ctx, `DELETE FROM files WHERE owner_id = $1 RETURNING storage_key`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}

	if r.hook != nil {
		r.hook.FilesDeleted(ctx, ownerID, keys)
	}
	return int64(len(keys)), nil
}

// DeleteFile removes one file of the owner. A file owned by someone else is
// reported as not found.
func (r *FileRepository) DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error {
	rows, err := r.conn.Query(ctx,
		`DELETE FROM files WHERE id = $1 AND owner_id = $2 RETURNING storage_key`, fileID, ownerID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if len(keys) == 0 {
		return apperr.New(apperr.ErrNotFound, "file not found", nil)
	}

	if r.hook != nil {
		r.hook.FilesDeleted(ctx, ownerID, keys)
	}
	return nil
}

func collectKeys(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
