package access

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// UserStore persists user identities. Email lookups are case-insensitive.
type UserStore interface {
	// CreateUser returns ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, u *User) error
	// UserByID returns ErrUserNotFound when no user matches.
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// UserByEmail returns ErrUserNotFound when no user matches.
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// MissingUsers returns the members of ids that are not registered.
	MissingUsers(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

// FileStore persists file records. Every mutation is a single-record
// atomic update so concurrent grant merges, token redemptions and link
// changes never lose each other's writes.
type FileStore interface {
	CreateFile(ctx context.Context, f *File) error
	// FileByID returns ErrFileNotFound when no record matches.
	FileByID(ctx context.Context, id uuid.UUID) (*File, error)
	// FileByToken returns ErrTokenNotFound when no record carries token.
	FileByToken(ctx context.Context, token string) (*File, error)
	// FilesOwnedBy lists owned files, newest first.
	FilesOwnedBy(ctx context.Context, owner uuid.UUID) ([]File, error)
	// FilesSharedWith lists files where user is a grantee, newest first.
	FilesSharedWith(ctx context.Context, user uuid.UUID) ([]SharedFile, error)
	// AddGrantees unions ids into the grant set and returns the result.
	AddGrantees(ctx context.Context, fileID uuid.UUID, ids []uuid.UUID) (GranteeSet, error)
	// RedeemToken adds userID to the grant set of the file carrying token,
	// provided the token still resolves and has not expired at now. The
	// check and the write are one atomic step. It returns ErrTokenNotFound
	// or ErrTokenExpired otherwise.
	RedeemToken(ctx context.Context, token string, userID uuid.UUID, now time.Time) (GranteeSet, error)
	// SetLink replaces the share token and expiry. An empty token clears
	// both.
	SetLink(ctx context.Context, fileID uuid.UUID, token string, expiry *time.Time) error
	// DeleteFile returns ErrFileNotFound when no record matches.
	DeleteFile(ctx context.Context, id uuid.UUID) error
}

// BlobStore holds file bytes under opaque object keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// Clock abstracts time for deterministic expiry tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// AuditAction names an audited access-control event.
type AuditAction string

const (
	AuditGrantMerge   AuditAction = "grant_merge"
	AuditLinkMint     AuditAction = "link_mint"
	AuditLinkRevoke   AuditAction = "link_revoke"
	AuditLinkRedeem   AuditAction = "link_redeem"
	AuditFileCreate   AuditAction = "file_create"
	AuditFileDelete   AuditAction = "file_delete"
	AuditUserRegister AuditAction = "user_register"
)

// AuditEntry records one access-control event.
type AuditEntry struct {
	Time    time.Time      `json:"time"`
	Action  AuditAction    `json:"action"`
	ActorID uuid.UUID      `json:"actor_id"`
	FileID  uuid.UUID      `json:"file_id,omitempty"`
	Success bool           `json:"success"`
	Details map[string]any `json:"details,omitempty"`
}

// Auditor receives audit entries. Failures are logged, never surfaced.
type Auditor interface {
	RecordAudit(ctx context.Context, e AuditEntry) error
}

// AuditReader is implemented by auditors that can replay a file's trail.
type AuditReader interface {
	// AuditTrail returns up to limit entries for fileID, newest first.
	AuditTrail(ctx context.Context, fileID uuid.UUID, limit int) ([]AuditEntry, error)
}
