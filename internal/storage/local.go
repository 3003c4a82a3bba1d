package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"secure-file-share/internal/access"
)

// ErrObjectNotFound is returned when a key has no stored bytes.
var ErrObjectNotFound = errors.New("storage: object not found")

// Local stores objects as files below basePath. Writes go to a temporary
// file that is renamed into place, so a key is either absent or complete.
type Local struct {
	basePath string
}

var _ access.BlobStore = (*Local)(nil)

func NewLocal(basePath string) (*Local, error) {
	if basePath == "" {
		return nil, errors.New("storage: empty base path")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "data"), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base path: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

func (s *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.basePath, "data", clean), nil
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	final, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(final), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(tmp, &ctxReader{ctx: ctx, r: r}, buf); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, final)
}

func (s *Local) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

func (s *Local) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}
	return nil
}

// Ping reports whether the base directory is reachable.
func (s *Local) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Join(s.basePath, "data"))
	return err
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
