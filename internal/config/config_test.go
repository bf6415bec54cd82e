package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"file-sharing-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestNew_Success(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	td := t.TempDir()
	cfgDir := filepath.Join(td, "config")
	require.NoError(t, os.Mkdir(cfgDir, 0o755))

	envContent := `POSTGRES_HOST=localhost
POSTGRES_PORT=5433
POSTGRES_USER=files
POSTGRES_PASSWORD=2529
POSTGRES_DB=files

JWT_TOKEN=very_very_secret_key

HTTP_PORT=8080
GRPC_HEALTH_PORT=50061

REDIS_HOST=localhost
REDIS_PORT=6380
REDIS_PASSWORD=
REDIS_DB=0

STORAGE_DRIVER=s3
S3_BUCKET_NAME=uploads
S3_BASE_ENDPOINT=http://localhost:9000
S3_USE_PATH_STYLE=true
`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "local.env"), []byte(envContent), 0o644))
	chdir(t, td)

	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, uint16(5433), cfg.Postgres.Port)
	assert.Equal(t, "files", cfg.Postgres.Username)
	assert.Equal(t, "2529", cfg.Postgres.Password)
	assert.Equal(t, "files", cfg.Postgres.Database)

	assert.Equal(t, "very_very_secret_key", cfg.Auth.JWTSecret)
	assert.Equal(t, 3*time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "50061", cfg.GRPCPort)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6380", cfg.Redis.Port)
	assert.Equal(t, 0, cfg.Redis.Db)

	assert.Equal(t, config.StorageS3, cfg.StorageDriver)
	assert.Equal(t, "uploads", cfg.S3.Bucket)
	assert.True(t, cfg.S3.UsePathStyle)

	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Files.PresignTTL)
	assert.Equal(t, int64(100<<20), cfg.Files.MaxUploadSize)
	assert.Equal(t, 4, cfg.Cleanup.Workers)
}

func TestNew_ConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prod.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_TOKEN=s\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := config.New()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNew_FileNotFound(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	chdir(t, t.TempDir())

	_, err := config.New()
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("JWT_TOKEN", "from-env")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("MINIO_BUCKET_NAME", "files")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "files", cfg.MinIO.BucketName)

	t.Setenv("STORAGE_DRIVER", "ftp")
	_, err = config.FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_NonPositiveDurations(t *testing.T) {
	t.Setenv("JWT_TOKEN", "from-env")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("MINIO_BUCKET_NAME", "files")

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"zero health interval", "HEALTH_CHECK_INTERVAL", "0s"},
		{"negative health interval", "HEALTH_CHECK_INTERVAL", "-5s"},
		{"zero shutdown timeout", "SHUTDOWN_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HEALTH_CHECK_INTERVAL", "15s")
			t.Setenv("SHUTDOWN_TIMEOUT", "20s")
			t.Setenv(tt.env, tt.val)

			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}
