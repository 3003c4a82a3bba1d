package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"secure-file-share/internal/access"
)

// MinIOConfig holds the S3 endpoint and bucket settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinIO stores objects in one bucket of an S3-compatible service.
type MinIO struct {
	client *minio.Client
	bucket string
}

var _ access.BlobStore = (*MinIO)(nil)

// splitEndpoint turns an endpoint setting into the host:port minio-go
// expects plus the TLS flag. A bare host:port means plain HTTP.
func splitEndpoint(raw string) (host string, useTLS bool, err error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if !hasScheme {
		scheme, rest = "http", raw
	}
	switch strings.ToLower(scheme) {
	case "http":
	case "https":
		useTLS = true
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", scheme)
	}

	u, err := url.Parse("//" + rest)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	switch {
	case u.Host == "":
		return "", false, fmt.Errorf("endpoint %q has no host", raw)
	case strings.Trim(u.Path, "/") != "":
		return "", false, fmt.Errorf("endpoint %q must not contain a path", raw)
	}
	return u.Host, useTLS, nil
}

// NewMinIO connects to the endpoint and checks that the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: minio configuration incomplete")
	}
	endpoint, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("storage: minio bucket does not exist: %s", cfg.Bucket)
	}
	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIO) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *MinIO) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// Force an early error for missing object / auth issues.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return obj, nil
}

// Remove deletes the object. S3 reports success for absent keys, so a
// stat runs first to surface ErrObjectNotFound consistently with Local.
func (s *MinIO) Remove(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinIO) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
