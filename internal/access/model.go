package access

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// User is a registered account. PasswordHash never leaves the process.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated actor attached to a request.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// GranteeSet is the set of identities with standing download access to a
// file. The zero value is an empty set ready for reads; use NewGranteeSet
// or Union to build one.
type GranteeSet map[uuid.UUID]struct{}

func NewGranteeSet(ids ...uuid.UUID) GranteeSet {
	s := make(GranteeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s GranteeSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s GranteeSet) Len() int { return len(s) }

// Union returns a new set holding the members of s and ids.
func (s GranteeSet) Union(ids ...uuid.UUID) GranteeSet {
	out := make(GranteeSet, len(s)+len(ids))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (s GranteeSet) Equal(o GranteeSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Slice returns the members in a stable order.
func (s GranteeSet) Slice() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// File is the metadata record of an uploaded file.
//
// ShareToken is empty when no link exists. LinkExpiry is nil when the
// link never expires.
type File struct {
	ID          uuid.UUID
	ObjectKey   string
	Name        string
	ContentType string
	Size        int64
	Checksum    string
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	SharedWith  GranteeSet
	ShareToken  string
	LinkExpiry  *time.Time
}

// HasLink reports whether a share token is currently attached.
func (f *File) HasLink() bool { return f.ShareToken != "" }

// SharedFile is a file listed for one of its grantees, with the owner's
// public details.
type SharedFile struct {
	File
	OwnerName  string
	OwnerEmail string
}
