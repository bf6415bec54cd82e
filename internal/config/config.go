package config

import (
	"fmt"
	"os"
	"time"

	"file-sharing-service/internal/MinIO"
	"file-sharing-service/internal/S3"
	"file-sharing-service/internal/cleanup"
	"file-sharing-service/internal/service/authService"
	"file-sharing-service/internal/service/fileService"
	"file-sharing-service/pkg/database/postgres"
	"file-sharing-service/pkg/database/redis"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DefaultPath = "./config/local.env"

	StorageMinIO = "minio"
	StorageS3    = "s3"
)

type Config struct {
	HTTPPort       string        `env:"HTTP_PORT" env-default:"8000"`
	GRPCPort       string        `env:"GRPC_HEALTH_PORT" env-default:"50051"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"info"`
	StorageDriver  string        `env:"STORAGE_DRIVER" env-default:"minio"`
	SecureCookies  bool          `env:"SECURE_COOKIES" env-default:"false"`
	CacheTTL       time.Duration `env:"LISTING_CACHE_TTL" env-default:"5m"`
	HealthInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" env-default:"15s"`
	ShutdownTime   time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"20s"`

	Auth     authService.Config
	Files    fileService.Config
	Cleanup  cleanup.Config
	Postgres postgres.Config
	Redis    redis.Config
	MinIO    MinIO.Config
	S3       S3.Config
}

// New reads the file named by CONFIG_PATH, or ./config/local.env. Process
// environment variables override the file.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	return &cfg, cfg.validate()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from environment: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageMinIO, StorageS3:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q, want %q or %q", c.StorageDriver, StorageMinIO, StorageS3)
	}
	if c.Files.UploadConcurrency <= 0 {
		return fmt.Errorf("UPLOAD_CONCURRENCY must be positive")
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive, got %s", c.HealthInterval)
	}
	if c.ShutdownTime <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTime)
	}
	return nil
}
