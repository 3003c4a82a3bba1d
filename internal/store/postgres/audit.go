package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"secure-file-share/internal/access"
)

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

// RecordAudit appends an entry to audit_logs.
func (s *Store) RecordAudit(ctx context.Context, e access.AuditEntry) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (timestamp, action, actor_id, file_id, success, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Time, string(e.Action), nullUUID(e.ActorID), nullUUID(e.FileID), e.Success, details,
	)
	return err
}

func (s *Store) AuditTrail(ctx context.Context, fileID uuid.UUID, limit int) ([]access.AuditEntry, error) {
	var rows []struct {
		Time    time.Time     `db:"timestamp"`
		Action  string        `db:"action"`
		ActorID uuid.NullUUID `db:"actor_id"`
		FileID  uuid.NullUUID `db:"file_id"`
		Success bool          `db:"success"`
		Details []byte        `db:"details"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT timestamp, action, actor_id, file_id, success, details
		FROM audit_logs WHERE file_id = $1
		ORDER BY timestamp DESC, id DESC LIMIT $2`, fileID, limit,
	); err != nil {
		return nil, err
	}
	out := make([]access.AuditEntry, len(rows))
	for i, r := range rows {
		out[i] = access.AuditEntry{
			Time:    r.Time.UTC(),
			Action:  access.AuditAction(r.Action),
			ActorID: r.ActorID.UUID,
			FileID:  r.FileID.UUID,
			Success: r.Success,
		}
		if len(r.Details) > 0 {
			if err := json.Unmarshal(r.Details, &out[i].Details); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
