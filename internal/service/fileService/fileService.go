// Package fileService coordinates the metadata store, the object store and
// the listing cache for uploads, listings and deletes.
//
// Ordering rules:
//   - a file row is inserted only after its blob has been written;
//   - the owner's cached listings are invalidated only after the row change
//     has committed (deletes do this through the repositories' delete hook);
//   - object store calls never run inside a database transaction.
package fileService

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/model/fileInfo"
	"file-sharing-service/internal/repository/listingCache"
	"file-sharing-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type MetadataStore interface {
	CreateFile(ctx context.Context, file *fileInfo.File) error
	ListFilesByOwner(ctx context.Context, ownerID uuid.UUID, filter fileInfo.Filter) ([]*fileInfo.File, error)
	DeleteFilesByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error
}

type UserStore interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ListingCache interface {
	Get(ctx context.Context, key string) ([]fileInfo.FileDetail, bool, error)
	Version(ctx context.Context, ownerID uuid.UUID) (string, error)
	SetIfUnchanged(ctx context.Context, ownerID uuid.UUID, key, version string, files []fileInfo.FileDetail) (bool, error)
	Invalidate(ctx context.Context, ownerID uuid.UUID) error
}

// Cleaner deletes orphaned blobs in the background.
type Cleaner interface {
	Enqueue(key string)
}

type Config struct {
	PresignTTL        time.Duration `env:"PRESIGN_TTL" env-default:"1h"`
	MaxUploadSize     int64         `env:"UPLOAD_MAX_SIZE" env-default:"104857600"`
	UploadConcurrency int           `env:"UPLOAD_CONCURRENCY" env-default:"4"`
}

func DefaultConfig() Config {
	return Config{
		PresignTTL:        time.Hour,
		MaxUploadSize:     100 << 20,
		UploadConcurrency: 4,
	}
}

type FileService struct {
	files   MetadataStore
	users   UserStore
	store   ObjectStore
	cache   ListingCache
	cleaner Cleaner
	cfg     Config

	misses singleflight.Group
}

func New(files MetadataStore, users UserStore, store ObjectStore, cache ListingCache, cleaner Cleaner, cfg Config) *FileService {
	def := DefaultConfig()
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = def.PresignTTL
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = def.UploadConcurrency
	}
	return &FileService{
		files:   files,
		users:   users,
		store:   store,
		cache:   cache,
		cleaner: cleaner,
		cfg:     cfg,
	}
}

// Upload stores every item independently and returns one result per item,
// in input order. A failing item never affects the others.
func (s *FileService) Upload(ctx context.Context, ownerID uuid.UUID, items []fileInfo.UploadItem) ([]fileInfo.UploadResult, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "no files provided", nil)
	}

	results := make([]fileInfo.UploadResult, len(items))
	var g errgroup.Group
	g.SetLimit(s.cfg.UploadConcurrency)
	for i := range items {
		g.Go(func() error {
			results[i] = s.uploadOne(ctx, ownerID, items[i])
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *FileService) uploadOne(ctx context.Context, ownerID uuid.UUID, item fileInfo.UploadItem) fileInfo.UploadResult {
	filename := item.Filename
	if filename == "" {
		filename = fileInfo.DefaultFilename
	}
	contentType := item.ContentType
	if contentType == "" {
		contentType = fileInfo.DefaultContentType
	}
	log := logger.GetLogger(ctx).With(zap.String("filename", filename), zap.String("owner_id", ownerID.String()))

	failed := func(kind error, detail string) fileInfo.UploadResult {
		err := apperr.New(kind, detail, nil)
		return fileInfo.UploadResult{
			Filename:    filename,
			Size:        int64(len(item.Data)),
			ContentType: contentType,
			Status:      apperr.Status(err),
			Error:       apperr.Detail(err),
		}
	}

	if item.ReadErr != nil {
		log.Warn("upload part unreadable", zap.Error(item.ReadErr))
		return failed(apperr.ErrInvalidInput, "could not read file")
	}
	if s.cfg.MaxUploadSize > 0 && int64(len(item.Data)) > s.cfg.MaxUploadSize {
		return failed(apperr.ErrInvalidInput, fmt.Sprintf("file exceeds the maximum size of %d bytes", s.cfg.MaxUploadSize))
	}

	key := fileInfo.StorageKey(ownerID, filename)
	if err := s.store.Put(ctx, key, item.Data, contentType); err != nil {
		log.Error("object store write failed", zap.String("storage_key", key), zap.Error(err))
		return failed(apperr.ErrStorageWrite, "failed to store file")
	}

	now := time.Now().UTC()
	file := &fileInfo.File{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Filename:    filename,
		Extension:   fileInfo.Ext(filename),
		StorageKey:  key,
		Size:        int64(len(item.Data)),
		ContentType: contentType,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		log.Error("metadata insert failed, scheduling orphan cleanup", zap.String("storage_key", key), zap.Error(err))
		s.cleaner.Enqueue(key)
		return failed(apperr.ErrMetadataWrite, "failed to save file metadata")
	}

	s.invalidate(ctx, ownerID)

	url := s.presign(ctx, key)
	return fileInfo.UploadResult{
		Filename:    file.Filename,
		UploadedAt:  &file.UploadedAt,
		UpdatedAt:   &file.UpdatedAt,
		AccessURL:   url,
		S3URL:       url,
		Size:        file.Size,
		ContentType: file.ContentType,
		Status:      http.StatusCreated,
	}
}

// UploadStatus is the status for a whole batch: 201 when every item
// succeeded, 207 when results are mixed, else the highest item status.
func UploadStatus(results []fileInfo.UploadResult) int {
	var ok, worst int
	for _, r := range results {
		if !r.Failed() {
			ok++
			continue
		}
		if r.Status > worst {
			worst = r.Status
		}
	}
	switch {
	case ok == len(results):
		return http.StatusCreated
	case ok > 0:
		return http.StatusMultiStatus
	default:
		return worst
	}
}

// List returns the owner's files matching filter. Cached listings are
// returned as stored, so their access URLs keep the expiry they were built
// with.
func (s *FileService) List(ctx context.Context, ownerID uuid.UUID, filter fileInfo.Filter) ([]fileInfo.FileDetail, error) {
	canon := filter.Canonical()
	key := listingCache.Key(ownerID, canon.Descriptor())
	log := logger.GetLogger(ctx).With(zap.String("cache_key", key))

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("listing cache read failed, treating as miss", zap.Error(err))
	} else if found {
		return cached, nil
	}

	// the version is read before the query so a mutation committed in
	// between makes the populate a no-op. It is also part of the flight
	// key: a caller arriving after an invalidation never joins a miss that
	// started before it.
	version, err := s.cache.Version(ctx, ownerID)
	if err != nil {
		log.Warn("listing cache version read failed, result will not be cached", zap.Error(err))
		return s.resolve(ctx, ownerID, canon, key, "", false)
	}

	v, err, _ := s.misses.Do(key+"@"+version, func() (any, error) {
		return s.resolve(context.WithoutCancel(ctx), ownerID, canon, key, version, true)
	})
	if err != nil {
		return nil, err
	}
	return v.([]fileInfo.FileDetail), nil
}

func (s *FileService) resolve(ctx context.Context, ownerID uuid.UUID, filter fileInfo.Filter, key, version string, cacheable bool) ([]fileInfo.FileDetail, error) {
	log := logger.GetLogger(ctx).With(zap.String("cache_key", key))

	rows, err := s.files.ListFilesByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", ownerID, err)
	}

	details := make([]fileInfo.FileDetail, 0, len(rows))
	for _, f := range rows {
		details = append(details, f.Detail(s.presign(ctx, f.StorageKey)))
	}

	if len(details) == 0 || !cacheable {
		return details, nil
	}
	stored, err := s.cache.SetIfUnchanged(ctx, ownerID, key, version, details)
	if err != nil {
		log.Error("listing cache write failed", zap.Error(errors.Join(apperr.ErrCache, err)))
	} else if !stored {
		log.Debug("listing changed while resolving, not cached")
	}
	return details, nil
}

// DeleteAll removes every file of the owner and returns how many rows went
// away. Calling it again on an empty set succeeds with zero.
func (s *FileService) DeleteAll(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	n, err := s.files.DeleteFilesByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete files of %s: %w", ownerID, err)
	}
	logger.GetLogger(ctx).Info("files deleted", zap.String("owner_id", ownerID.String()), zap.Int64("count", n))
	return n, nil
}

func (s *FileService) DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error {
	if err := s.files.DeleteFile(ctx, ownerID, fileID); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// DeleteUser removes the account; its files go with it by cascade.
func (s *FileService) DeleteUser(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.users.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("delete user %s: %w", ownerID, err)
	}
	logger.GetLogger(ctx).Info("user deleted", zap.String("owner_id", ownerID.String()))
	return nil
}

func (s *FileService) invalidate(ctx context.Context, ownerID uuid.UUID) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), ownerID); err != nil {
		logger.GetLogger(ctx).Error("listing cache invalidation failed",
			zap.String("owner_id", ownerID.String()), zap.Error(err))
	}
}

// presign returns nil when no URL could be generated.
func (s *FileService) presign(ctx context.Context, key string) *string {
	url, err := s.store.PresignGet(ctx, key, s.cfg.PresignTTL)
	if err != nil {
		logger.GetLogger(ctx).Warn("presign failed", zap.String("storage_key", key), zap.Error(err))
		return nil
	}
	return &url
}
