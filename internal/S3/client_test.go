package S3_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"file-sharing-service/internal/S3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBucket(t *testing.T) {
	_, err := S3.New(context.Background(), S3.Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestPresignGet_PathStyle(t *testing.T) {
	c, err := S3.New(context.Background(), S3.Config{
		Region:       "us-east-1",
		Bucket:       "storage",
		AccessKey:    "admin",
		SecretKey:    "secret-key",
		BaseEndpoint: "http://localhost:9000",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	raw, err := c.PresignGet(context.Background(), "owner/abc.pdf", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/storage/owner/abc.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
