package access

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service is the authorization API used by the request layer. Every
// mutation of grants, share tokens, link expiries and file records goes
// through it.
type Service struct {
	users      UserStore
	files      FileStore
	blobs      BlobStore
	audit      Auditor
	clock      Clock
	logger     *slog.Logger
	random     io.Reader
	bcryptCost int
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithAuditor(a Auditor) Option { return func(s *Service) { s.audit = a } }

// WithBcryptCost overrides the password hashing cost (default 12).
func WithBcryptCost(cost int) Option { return func(s *Service) { s.bcryptCost = cost } }

// WithRandom replaces the entropy source used for share tokens.
func WithRandom(r io.Reader) Option { return func(s *Service) { s.random = r } }

func NewService(users UserStore, files FileStore, blobs BlobStore, opts ...Option) *Service {
	s := &Service{
		users:      users,
		files:      files,
		blobs:      blobs,
		clock:      realClock{},
		logger:     slog.Default(),
		random:     rand.Reader,
		bcryptCost: 12,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bcryptCost < bcrypt.MinCost {
		s.bcryptCost = bcrypt.MinCost
	}
	return s
}

// loadFile fetches a record, keeping ErrFileNotFound distinguishable from
// storage failures.
func (s *Service) loadFile(ctx context.Context, id uuid.UUID) (*File, error) {
	f, err := s.files.FileByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
		return nil, storageError("load file", err)
	}
	return f, nil
}

// authorize loads the file and applies Decide for actor.
func (s *Service) authorize(ctx context.Context, action Action, actor Identity, fileID uuid.UUID) (*File, error) {
	if actor.ID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	f, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := Decide(action, actor.ID, f).Err(); err != nil {
		s.logger.InfoContext(ctx, "access denied",
			"action", action.String(), "actor", actor.ID, "file", fileID)
		return nil, err
	}
	return f, nil
}

func (s *Service) record(ctx context.Context, e AuditEntry) {
	if s.audit == nil {
		return
	}
	e.Time = s.clock.Now()
	if err := s.audit.RecordAudit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "action", string(e.Action), "err", err)
	}
}

// FileAudit returns the owner-visible audit trail of a file. Auditors that
// cannot be read back yield an empty trail.
func (s *Service) FileAudit(ctx context.Context, actor Identity, fileID uuid.UUID, limit int) ([]AuditEntry, error) {
	if _, err := s.authorize(ctx, ActionViewAudit, actor, fileID); err != nil {
		return nil, err
	}
	reader, ok := s.audit.(AuditReader)
	if !ok {
		return []AuditEntry{}, nil
	}
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	entries, err := reader.AuditTrail(ctx, fileID, limit)
	if err != nil {
		return nil, storageError("read audit trail", err)
	}
	return entries, nil
}
