//go:build integration

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// startMinIO runs a throwaway MinIO container with one bucket.
func startMinIO(t *testing.T) MinIOConfig {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	// Tag can be overridden by SFS_MINIO_TEST_TAG.
	tag := os.Getenv("SFS_MINIO_TEST_TAG")
	if tag == "" {
		tag = "RELEASE.2024-01-31T20-20-33Z"
	}
	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        tag,
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=minio",
			"MINIO_ROOT_PASSWORD=minio123",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start minio: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(res) })

	endpoint := "localhost:" + res.GetPort("9000/tcp")
	if err := pool.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	}); err != nil {
		t.Fatalf("minio not ready: %v", err)
	}

	mc, err := minio.New(endpoint, &minio.Options{Creds: credentials.NewStaticV4("minio", "minio123", "")})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	if err := mc.MakeBucket(context.Background(), "testbucket", minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("make bucket: %v", err)
	}
	return MinIOConfig{Endpoint: endpoint, AccessKey: "minio", SecretKey: "minio123", Bucket: "testbucket"}
}

func TestMinIORoundTrip(t *testing.T) {
	cfg := startMinIO(t)
	ctx := context.Background()

	s, err := NewMinIO(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMinIO: %v", err)
	}

	data := []byte("hello from the integration test")
	if err := s.Put(ctx, "uploads/x", bytes.NewReader(data), int64(len(data)), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := s.Get(ctx, "uploads/x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q want %q", got, data)
	}

	if err := s.Remove(ctx, "uploads/x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "uploads/x"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("second Remove: got %v, want ErrObjectNotFound", err)
	}
	if _, err := s.Get(ctx, "uploads/x"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get after Remove: got %v, want ErrObjectNotFound", err)
	}
}

func TestNewMinIOMissingBucket(t *testing.T) {
	cfg := startMinIO(t)
	cfg.Bucket = "does-not-exist"
	if _, err := NewMinIO(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
