package access_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"secure-file-share/internal/access"
	"secure-file-share/internal/logging"
	"secure-file-share/internal/store/memstore"
)

var errNoObject = errors.New("no such object")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memBlobs is an in-memory BlobStore with injectable failures.
type memBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    error
	failRemove error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut != nil {
		return b.failPut
	}
	b.objects[key] = data
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errNoObject
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRemove != nil {
		return b.failRemove
	}
	if _, ok := b.objects[key]; !ok {
		return errNoObject
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type env struct {
	t     *testing.T
	svc   *access.Service
	store *memstore.Store
	blobs *memBlobs
	clock *fakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithFiles(t, nil)
}

// newEnvWithFiles lets a test substitute the FileStore.
func newEnvWithFiles(t *testing.T, files func(*memstore.Store) access.FileStore) *env {
	t.Helper()
	e := &env{t: t, store: memstore.New(), blobs: newMemBlobs(), clock: newFakeClock()}
	var fs access.FileStore = e.store
	if files != nil {
		fs = files(e.store)
	}
	e.svc = access.NewService(e.store, fs, e.blobs,
		access.WithClock(e.clock),
		access.WithLogger(logging.Discard()),
		access.WithAuditor(e.store),
		access.WithBcryptCost(bcrypt.MinCost),
	)
	return e
}

func (e *env) user(name string) access.Identity {
	e.t.Helper()
	u, err := e.svc.Register(context.Background(), access.RegisterRequest{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "password1",
	})
	if err != nil {
		e.t.Fatalf("Register(%s): %v", name, err)
	}
	return u.Identity()
}

func (e *env) file(owner access.Identity, content string) *access.File {
	e.t.Helper()
	f, err := e.svc.CreateFile(context.Background(), owner, access.Upload{
		Name:        "notes.txt",
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Body:        strings.NewReader(content),
	})
	if err != nil {
		e.t.Fatalf("CreateFile: %v", err)
	}
	return f
}

func (e *env) reload(id uuid.UUID) *access.File {
	e.t.Helper()
	f, err := e.store.FileByID(context.Background(), id)
	if err != nil {
		e.t.Fatalf("FileByID: %v", err)
	}
	return f
}

func (e *env) share(owner access.Identity, f *access.File, grantees ...access.Identity) *access.File {
	e.t.Helper()
	ids := make([]uuid.UUID, len(grantees))
	for i, g := range grantees {
		ids[i] = g.ID
	}
	out, err := e.svc.Share(context.Background(), owner, f.ID, access.MergeRequest{UserIDs: ids})
	if err != nil {
		e.t.Fatalf("Share: %v", err)
	}
	return out
}
