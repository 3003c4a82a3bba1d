package access

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/blake3"
)

// Upload describes bytes to be stored as a new file. Size may be -1 when
// unknown.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u Upload) validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalidInput("missing file name")
	}
	if strings.TrimSpace(u.ContentType) == "" {
		return invalidInput("missing content type")
	}
	if u.Size < -1 {
		return invalidInput("negative size")
	}
	if u.Body == nil {
		return invalidInput("missing body")
	}
	return nil
}

// ObjectKey is the blob key of a file's bytes.
func ObjectKey(id uuid.UUID) string {
	return "uploads/" + id.String()
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// CreateFile stores the bytes first and persists the record only once they
// are written. If the record cannot be persisted the stored bytes are
// removed and the failure is returned regardless of the cleanup outcome.
func (s *Service) CreateFile(ctx context.Context, owner Identity, up Upload) (*File, error) {
	if owner.ID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	if err := up.validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	key := ObjectKey(id)
	hasher := blake3.New()
	counter := &countingWriter{}
	body := io.TeeReader(up.Body, io.MultiWriter(hasher, counter))

	if err := s.blobs.Put(ctx, key, body, up.Size, up.ContentType); err != nil {
		return nil, storageError("store bytes", err)
	}

	f := &File{
		ID:          id,
		ObjectKey:   key,
		Name:        strings.TrimSpace(up.Name),
		ContentType: strings.TrimSpace(up.ContentType),
		Size:        counter.n,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		OwnerID:     owner.ID,
		CreatedAt:   s.clock.Now(),
		SharedWith:  NewGranteeSet(),
	}
	if err := s.files.CreateFile(ctx, f); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, storageError("persist file record", err))
		if rmErr := s.blobs.Remove(ctx, key); rmErr != nil {
			result = multierror.Append(result, fmt.Errorf("remove orphaned object %s: %w", key, rmErr))
		}
		s.logger.ErrorContext(ctx, "file create failed", "file", id, "err", result)
		return nil, result.ErrorOrNil()
	}

	s.record(ctx, AuditEntry{
		Action: AuditFileCreate, ActorID: owner.ID, FileID: id, Success: true,
		Details: map[string]any{"size": f.Size},
	})
	return f, nil
}

// CreateFiles stores a batch. If any member fails, the members already
// created are deleted again, each with a rollback delete in the audit
// trail, and the first failure is returned.
func (s *Service) CreateFiles(ctx context.Context, owner Identity, ups []Upload) ([]File, error) {
	if len(ups) == 0 {
		return nil, invalidInput("no files")
	}
	created := make([]File, 0, len(ups))
	for _, up := range ups {
		f, err := s.CreateFile(ctx, owner, up)
		if err == nil {
			created = append(created, *f)
			continue
		}
		var result *multierror.Error
		result = multierror.Append(result, err)
		for _, c := range created {
			details := map[string]any{"rollback": true, "blob_removed": true}
			ok := true
			if rmErr := s.blobs.Remove(ctx, c.ObjectKey); rmErr != nil {
				details["blob_removed"] = false
				result = multierror.Append(result, fmt.Errorf("remove object %s: %w", c.ObjectKey, rmErr))
			}
			if delErr := s.files.DeleteFile(ctx, c.ID); delErr != nil {
				ok = false
				details["error"] = delErr.Error()
				result = multierror.Append(result, fmt.Errorf("delete record %s: %w", c.ID, delErr))
			}
			s.record(ctx, AuditEntry{
				Action: AuditFileDelete, ActorID: owner.ID, FileID: c.ID, Success: ok, Details: details,
			})
		}
		return nil, result.ErrorOrNil()
	}
	return created, nil
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	File        *File
	BlobRemoved bool
}

// DeleteFile removes a file the actor owns: bytes first, then the record.
// A failure to remove the bytes (for instance because they are already
// gone) is logged and audited but does not stop the record deletion.
func (s *Service) DeleteFile(ctx context.Context, actor Identity, fileID uuid.UUID) (DeleteResult, error) {
	f, err := s.authorize(ctx, ActionDelete, actor, fileID)
	if err != nil {
		return DeleteResult{}, err
	}

	res := DeleteResult{File: f, BlobRemoved: true}
	if err := s.blobs.Remove(ctx, f.ObjectKey); err != nil {
		res.BlobRemoved = false
		s.logger.WarnContext(ctx, "stored bytes not removed", "file", f.ID, "key", f.ObjectKey, "err", err)
	}

	if err := s.files.DeleteFile(ctx, f.ID); err != nil {
		if !errors.Is(err, ErrFileNotFound) {
			err = storageError("delete file record", err)
		}
		s.record(ctx, AuditEntry{
			Action: AuditFileDelete, ActorID: actor.ID, FileID: f.ID, Success: false,
			Details: map[string]any{"blob_removed": res.BlobRemoved, "error": err.Error()},
		})
		return DeleteResult{}, err
	}
	s.record(ctx, AuditEntry{
		Action: AuditFileDelete, ActorID: actor.ID, FileID: f.ID, Success: true,
		Details: map[string]any{"blob_removed": res.BlobRemoved},
	})
	return res, nil
}

// OpenFile returns the record and a reader over its bytes if the actor may
// download it. The caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, actor Identity, fileID uuid.UUID) (*File, io.ReadCloser, error) {
	f, err := s.authorize(ctx, ActionDownload, actor, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, f.ObjectKey)
	if err != nil {
		return nil, nil, storageError("open stored bytes", err)
	}
	return f, rc, nil
}

// OwnedFiles lists the actor's files, newest first.
func (s *Service) OwnedFiles(ctx context.Context, actor Identity) ([]File, error) {
	if actor.ID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	files, err := s.files.FilesOwnedBy(ctx, actor.ID)
	if err != nil {
		return nil, storageError("list owned files", err)
	}
	return files, nil
}

// SharedFiles lists files the actor holds a grant on, newest first.
func (s *Service) SharedFiles(ctx context.Context, actor Identity) ([]SharedFile, error) {
	if actor.ID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	files, err := s.files.FilesSharedWith(ctx, actor.ID)
	if err != nil {
		return nil, storageError("list shared files", err)
	}
	return files, nil
}
