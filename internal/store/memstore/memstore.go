// Package memstore keeps users, file records and audit entries in process
// memory. It backs unit tests and the memory:// development mode; all
// state is lost on exit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"secure-file-share/internal/access"
)

// Store implements access.UserStore, access.FileStore and access.Auditor.
// One mutex serializes every operation, which makes each mutation an
// atomic read-modify-write.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]access.User
	byEmail map[string]uuid.UUID
	files   map[uuid.UUID]access.File
	tokens  map[string]uuid.UUID
	audit   []access.AuditEntry
}

var (
	_ access.UserStore   = (*Store)(nil)
	_ access.FileStore   = (*Store)(nil)
	_ access.Auditor     = (*Store)(nil)
	_ access.AuditReader = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]access.User),
		byEmail: make(map[string]uuid.UUID),
		files:   make(map[uuid.UUID]access.File),
		tokens:  make(map[string]uuid.UUID),
	}
}

func (s *Store) CreateUser(_ context.Context, u *access.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := access.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return access.ErrDuplicateEmail
	}
	cp := *u
	cp.Email = email
	s.users[u.ID] = cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*access.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, access.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*access.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[access.NormalizeEmail(email)]
	if !ok {
		return nil, access.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]access.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]access.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) MissingUsers(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// copyFile detaches the grant set and expiry from the stored record.
func copyFile(f access.File) access.File {
	f.SharedWith = f.SharedWith.Union()
	if f.LinkExpiry != nil {
		exp := *f.LinkExpiry
		f.LinkExpiry = &exp
	}
	return f
}

func (s *Store) CreateFile(_ context.Context, f *access.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = copyFile(*f)
	if f.ShareToken != "" {
		s.tokens[f.ShareToken] = f.ID
	}
	return nil
}

func (s *Store) FileByID(_ context.Context, id uuid.UUID) (*access.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, access.ErrFileNotFound
	}
	cp := copyFile(f)
	return &cp, nil
}

func (s *Store) FileByToken(_ context.Context, token string) (*access.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, access.ErrTokenNotFound
	}
	cp := copyFile(s.files[id])
	return &cp, nil
}

func (s *Store) FilesOwnedBy(_ context.Context, owner uuid.UUID) ([]access.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []access.File
	for _, f := range s.files {
		if f.OwnerID == owner {
			out = append(out, copyFile(f))
		}
	}
	sortNewestFirst(out, func(i int) time.Time { return out[i].CreatedAt })
	return out, nil
}

func (s *Store) FilesSharedWith(_ context.Context, user uuid.UUID) ([]access.SharedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []access.SharedFile
	for _, f := range s.files {
		if !f.SharedWith.Has(user) {
			continue
		}
		owner := s.users[f.OwnerID]
		out = append(out, access.SharedFile{File: copyFile(f), OwnerName: owner.Name, OwnerEmail: owner.Email})
	}
	sortNewestFirst(out, func(i int) time.Time { return out[i].CreatedAt })
	return out, nil
}

func sortNewestFirst[T any](s []T, at func(int) time.Time) {
	sort.SliceStable(s, func(i, j int) bool { return at(i).After(at(j)) })
}

func (s *Store) AddGrantees(_ context.Context, fileID uuid.UUID, ids []uuid.UUID) (access.GranteeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, access.ErrFileNotFound
	}
	f.SharedWith = f.SharedWith.Union(ids...)
	s.files[fileID] = f
	return f.SharedWith.Union(), nil
}

func (s *Store) RedeemToken(_ context.Context, token string, userID uuid.UUID, now time.Time) (access.GranteeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, access.ErrTokenNotFound
	}
	f := s.files[id]
	if f.LinkExpiry != nil && now.After(*f.LinkExpiry) {
		return nil, access.ErrTokenExpired
	}
	f.SharedWith = f.SharedWith.Union(userID)
	s.files[id] = f
	return f.SharedWith.Union(), nil
}

func (s *Store) SetLink(_ context.Context, fileID uuid.UUID, token string, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return access.ErrFileNotFound
	}
	if f.ShareToken != "" {
		delete(s.tokens, f.ShareToken)
	}
	f.ShareToken = token
	f.LinkExpiry = nil
	if token != "" {
		s.tokens[token] = fileID
		if expiry != nil {
			exp := *expiry
			f.LinkExpiry = &exp
		}
	}
	s.files[fileID] = f
	return nil
}

func (s *Store) DeleteFile(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return access.ErrFileNotFound
	}
	if f.ShareToken != "" {
		delete(s.tokens, f.ShareToken)
	}
	delete(s.files, id)
	return nil
}

func (s *Store) RecordAudit(_ context.Context, e access.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail.
func (s *Store) AuditEntries() []access.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]access.AuditEntry(nil), s.audit...)
}

func (s *Store) AuditTrail(_ context.Context, fileID uuid.UUID, limit int) ([]access.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []access.AuditEntry{}
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if s.audit[i].FileID == fileID {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}
