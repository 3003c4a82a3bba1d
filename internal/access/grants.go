package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MergeRequest carries the identities to add to a file's grant set.
type MergeRequest struct {
	UserIDs []uuid.UUID
}

// NewMergeRequest parses raw identity references.
func NewMergeRequest(raw []string) (MergeRequest, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return MergeRequest{}, invalidInput(fmt.Sprintf("bad user id %q", r))
		}
		ids = append(ids, id)
	}
	req := MergeRequest{UserIDs: ids}
	return req, req.Validate()
}

func (r MergeRequest) Validate() error {
	if len(r.UserIDs) == 0 {
		return invalidInput("no grantees")
	}
	for _, id := range r.UserIDs {
		if id == uuid.Nil {
			return invalidInput("nil grantee id")
		}
	}
	return nil
}

// Merge unions the requested grantees into f's grant set and returns the
// updated record. The caller must already hold owner authorization.
//
// If any grantee is not a registered user the whole merge is rejected
// with ErrUnknownGrantee and nothing is written. Merging identities that
// are already present, or the owner, is a no-op.
func (s *Service) Merge(ctx context.Context, f *File, req MergeRequest) (*File, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ids := NewGranteeSet(req.UserIDs...).Slice()

	missing, err := s.users.MissingUsers(ctx, ids)
	if err != nil {
		return nil, storageError("check grantees", err)
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, id := range missing {
			names[i] = id.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownGrantee, strings.Join(names, ", "))
	}

	add := ids[:0]
	for _, id := range ids {
		if id != f.OwnerID && !f.SharedWith.Has(id) {
			add = append(add, id)
		}
	}
	out := *f
	if len(add) == 0 {
		out.SharedWith = f.SharedWith.Union()
		return &out, nil
	}

	set, err := s.files.AddGrantees(ctx, f.ID, add)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrUnknownGrantee) {
			return nil, err
		}
		return nil, storageError("add grantees", err)
	}
	out.SharedWith = set
	return &out, nil
}

// Share grants standing download access on a file the actor owns.
func (s *Service) Share(ctx context.Context, actor Identity, fileID uuid.UUID, req MergeRequest) (*File, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f, err := s.authorize(ctx, ActionShare, actor, fileID)
	if err != nil {
		return nil, err
	}
	out, err := s.Merge(ctx, f, req)
	entry := AuditEntry{Action: AuditGrantMerge, ActorID: actor.ID, FileID: fileID, Success: err == nil}
	if err != nil {
		entry.Details = map[string]any{"error": err.Error()}
	} else {
		entry.Details = map[string]any{"grantees": len(out.SharedWith)}
	}
	s.record(ctx, entry)
	return out, err
}
