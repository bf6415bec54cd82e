package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"file-sharing-service/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{"conflict", apperr.New(apperr.ErrConflict, "username already taken", nil), http.StatusBadRequest},
		{"client input", fmt.Errorf("upload: %w", apperr.New(apperr.ErrInvalidInput, "bad file", nil)), http.StatusBadRequest},
		{"not found", apperr.ErrNotFound, http.StatusNotFound},
		{"storage write", apperr.New(apperr.ErrStorageWrite, "failed to upload a.txt", errors.New("timeout")), http.StatusInternalServerError},
		{"metadata write", apperr.New(apperr.ErrMetadataWrite, "failed to save", nil), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.Status(tt.err))
		})
	}
}

func TestDetail_DoesNotLeakCause(t *testing.T) {
	err := apperr.New(apperr.ErrMetadataWrite, "Failed to save the metadata of file a.txt", errors.New("pq: relation files does not exist"))

	assert.Equal(t, "Failed to save the metadata of file a.txt", apperr.Detail(err))
	assert.Contains(t, err.Error(), "relation files")
	assert.True(t, errors.Is(err, apperr.ErrMetadataWrite))
	assert.Equal(t, "internal server error", apperr.Detail(errors.New("pq: secret")))
	assert.Equal(t, "could not validate credentials", apperr.Detail(fmt.Errorf("x: %w", apperr.ErrUnauthenticated)))
}
