package fileHandler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/handler/response"
	"file-sharing-service/internal/model/fileInfo"
	"file-sharing-service/internal/service/fileService"
	"file-sharing-service/pkg/logger"
	"file-sharing-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const uploadField = "files"

type FileService interface {
	Upload(ctx context.Context, ownerID uuid.UUID, items []fileInfo.UploadItem) ([]fileInfo.UploadResult, error)
	List(ctx context.Context, ownerID uuid.UUID, filter fileInfo.Filter) ([]fileInfo.FileDetail, error)
	DeleteAll(ctx context.Context, ownerID uuid.UUID) (int64, error)
	DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error
	DeleteUser(ctx context.Context, ownerID uuid.UUID) error
}

// Sessions ends the caller's session once the account is gone.
type Sessions interface {
	Logout(ctx context.Context, userID uuid.UUID, accessToken string) error
}

type FileHandler struct {
	fileService   FileService
	sessions      Sessions
	maxUploadSize int64
	secureCookie  bool
}

func New(service FileService, sessions Sessions, maxUploadSize int64, secureCookie bool) *FileHandler {
	return &FileHandler{
		fileService:   service,
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
		secureCookie:  secureCookie,
	}
}

func caller(c *gin.Context) (uuid.UUID, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperr.ErrUnauthenticated)
	}
	return uid, ok
}

// Upload handles POST /user/upload with one or more "files" parts.
func (h *FileHandler) Upload(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Detail(c, http.StatusBadRequest, "expected multipart/form-data with a \"files\" field")
		return
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		response.Detail(c, http.StatusBadRequest, "no files provided")
		return
	}

	items := make([]fileInfo.UploadItem, 0, len(headers))
	for _, fh := range headers {
		items = append(items, h.readPart(fh))
	}

	results, err := h.fileService.Upload(c.Request.Context(), owner, items)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(fileService.UploadStatus(results), results)
}

// readPart loads a part fully into memory; the multipart temp files are gone
// once the request ends.
func (h *FileHandler) readPart(fh *multipart.FileHeader) fileInfo.UploadItem {
	item := fileInfo.UploadItem{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}
	f, err := fh.Open()
	if err != nil {
		item.ReadErr = fmt.Errorf("open part: %w", err)
		return item
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxUploadSize > 0 {
		// one byte over is enough for the size check to reject it
		r = io.LimitReader(f, h.maxUploadSize+1)
	}
	item.Data, err = io.ReadAll(r)
	if err != nil {
		item.ReadErr = fmt.Errorf("read part: %w", err)
	}
	return item
}

// List handles GET /user/files?filename=&content_type=&file_extension=.
func (h *FileHandler) List(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	filter := fileInfo.Filter{
		Filename:    c.Query("filename"),
		Extension:   c.Query("file_extension"),
		ContentType: c.Query("content_type"),
	}
	files, err := h.fileService.List(c.Request.Context(), owner, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *FileHandler) DeleteAll(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.fileService.DeleteAll(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all files deleted", "deleted": n})
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid file id")
		return
	}
	if err := h.fileService.DeleteFile(c.Request.Context(), owner, fileID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "file deleted")
}

// DeleteUser handles DELETE /user: the account, its files and the session.
func (h *FileHandler) DeleteUser(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.fileService.DeleteUser(ctx, owner); err != nil {
		response.Error(c, err)
		return
	}
	if h.sessions != nil {
		if err := h.sessions.Logout(ctx, owner, middleware.Token(c)); err != nil {
			logger.GetLogger(ctx).Warn("session cleanup after account delete failed", zap.Error(err))
		}
	}
	middleware.ClearAccessCookie(c, h.secureCookie)
	response.Message(c, http.StatusOK, "user and all files deleted")
}
