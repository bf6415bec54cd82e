package MinIO

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint   string `env:"MINIO_ENDPOINT" env-default:"minio:9000"`
	BucketName string `env:"MINIO_BUCKET_NAME" env-default:"storage"`
	AccessKey  string `env:"MINIO_ACCESS_KEY" env-default:"admin"`
	SecretKey  string `env:"MINIO_SECRET_KEY"`
	UseSSL     bool   `env:"MINIO_USE_SSL" env-default:"false"`
	// Region is fixed so presigning never has to look up the bucket location.
	Region string `env:"MINIO_REGION" env-default:"us-east-1"`
}

type MinIOClient struct {
	Client *minio.Client
	Bucket string
}

func New(cfg Config) (*MinIOClient, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("minio: bucket name is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: init client: %w", err)
	}
	return &MinIOClient{Client: client, Bucket: cfg.BucketName}, nil
}

// EnsureBucket creates the bucket unless it already exists.
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{})
	if err == nil {
		return nil
	}
	exists, errExists := m.Client.BucketExists(ctx, m.Bucket)
	if errExists == nil && exists {
		return nil
	}
	return fmt.Errorf("minio: create bucket %q: %w", m.Bucket, err)
}

func (m *MinIOClient) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing object is not an error.
func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	err := m.Client.RemoveObject(ctx, m.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("minio: delete %s: %w", key, err)
	}
	return nil
}

func (m *MinIOClient) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.Client.PresignedGetObject(ctx, m.Bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("minio: presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinIOClient) Ping(ctx context.Context) error {
	ok, err := m.Client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("minio: ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("minio: bucket %q does not exist", m.Bucket)
	}
	return nil
}
