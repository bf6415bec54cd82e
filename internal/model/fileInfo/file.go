package fileInfo

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultFilename    = "untitled"
	DefaultContentType = "application/octet-stream"
)

// File is one row of the files table.
type File struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Filename    string    `json:"filename"`
	Extension   string    `json:"extension"`
	StorageKey  string    `json:"storage_key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileDetail is a listing entry. It is also the cached representation, so
// AccessURL keeps whatever expiry it had when the entry was built.
type FileDetail struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Size        int64     `json:"size"`
	AccessURL   *string   `json:"access_url"`
	ContentType string    `json:"content_type"`
}

// UploadItem is one part of a multipart upload, already read into memory.
// ReadErr is set when the part could not be read.
type UploadItem struct {
	Filename    string
	ContentType string
	Data        []byte
	ReadErr     error
}

// UploadResult reports the outcome of a single UploadItem. Exactly one of
// the success fields or Error is meaningful.
type UploadResult struct {
	Filename    string     `json:"filename"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	AccessURL   *string    `json:"access_url,omitempty"`
	S3URL       *string    `json:"s3_url,omitempty"` // Deprecated: same value as AccessURL.
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	Status      int        `json:"status"`
	Error       string     `json:"error,omitempty"`
}

func (r UploadResult) Failed() bool {
	return r.Error != ""
}

func (f *File) Detail(accessURL *string) FileDetail {
	return FileDetail{
		ID:          f.ID,
		Filename:    f.Filename,
		UploadedAt:  f.UploadedAt,
		UpdatedAt:   f.UpdatedAt,
		Size:        f.Size,
		AccessURL:   accessURL,
		ContentType: f.ContentType,
	}
}

// Ext returns the lower-cased extension of filename including the dot, or "".
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// StorageKey builds {owner}/{uuid}{ext}. The extension is kept only for
// readability of the bucket.
func StorageKey(ownerID uuid.UUID, filename string) string {
	return ownerID.String() + "/" + uuid.NewString() + filepath.Ext(filename)
}
