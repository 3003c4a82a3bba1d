package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"secure-file-share/internal/access"
)

type fileRow struct {
	ID          uuid.UUID      `db:"id"`
	ObjectKey   string         `db:"object_key"`
	Name        string         `db:"name"`
	ContentType string         `db:"content_type"`
	Size        int64          `db:"size_bytes"`
	Checksum    string         `db:"checksum"`
	OwnerID     uuid.UUID      `db:"owner_id"`
	ShareToken  sql.NullString `db:"share_token"`
	LinkExpiry  sql.NullTime   `db:"link_expiry"`
	CreatedAt   time.Time      `db:"created_at"`
}

type sharedRow struct {
	fileRow
	OwnerName  string `db:"owner_name"`
	OwnerEmail string `db:"owner_email"`
}

const fileColumns = `f.id, f.object_key, f.name, f.content_type, f.size_bytes, f.checksum,
	f.owner_id, f.share_token, f.link_expiry, f.created_at`

func (r fileRow) file(grants access.GranteeSet) access.File {
	f := access.File{
		ID:          r.ID,
		ObjectKey:   r.ObjectKey,
		Name:        r.Name,
		ContentType: r.ContentType,
		Size:        r.Size,
		Checksum:    r.Checksum,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt.UTC(),
		SharedWith:  grants,
	}
	if f.SharedWith == nil {
		f.SharedWith = access.NewGranteeSet()
	}
	if r.ShareToken.Valid {
		f.ShareToken = r.ShareToken.String
		if r.LinkExpiry.Valid {
			t := r.LinkExpiry.Time.UTC()
			f.LinkExpiry = &t
		}
	}
	return f
}

func nullToken(token string) sql.NullString {
	return sql.NullString{String: token, Valid: token != ""}
}

func nullExpiry(token string, expiry *time.Time) sql.NullTime {
	if token == "" || expiry == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *expiry, Valid: true}
}

// grantsFor loads the grant sets of the given files.
func grantsFor(ctx context.Context, q sqlx.ExtContext, fileIDs []uuid.UUID) (map[uuid.UUID]access.GranteeSet, error) {
	out := make(map[uuid.UUID]access.GranteeSet, len(fileIDs))
	if len(fileIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT file_id, user_id FROM file_grants WHERE file_id IN (?)`, fileIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		FileID uuid.UUID `db:"file_id"`
		UserID uuid.UUID `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		set, ok := out[r.FileID]
		if !ok {
			set = access.NewGranteeSet()
			out[r.FileID] = set
		}
		set[r.UserID] = struct{}{}
	}
	return out, nil
}

func (s *Store) CreateFile(ctx context.Context, f *access.File) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (id, object_key, name, content_type, size_bytes, checksum,
		                   owner_id, share_token, link_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.ObjectKey, f.Name, f.ContentType, f.Size, f.Checksum,
		f.OwnerID, nullToken(f.ShareToken), nullExpiry(f.ShareToken, f.LinkExpiry), f.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, id := range f.SharedWith.Slice() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_grants (file_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			f.ID, id,
		); err != nil {
			if isForeignKeyViolation(err) {
				return access.ErrUnknownGrantee
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) fileWhere(ctx context.Context, cond string, arg any) (*access.File, error) {
	var row fileRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+fileColumns+` FROM files f WHERE `+cond, arg); err != nil {
		return nil, err
	}
	grants, err := grantsFor(ctx, s.db, []uuid.UUID{row.ID})
	if err != nil {
		return nil, err
	}
	f := row.file(grants[row.ID])
	return &f, nil
}

func (s *Store) FileByID(ctx context.Context, id uuid.UUID) (*access.File, error) {
	f, err := s.fileWhere(ctx, `f.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrFileNotFound
	}
	return f, err
}

func (s *Store) FileByToken(ctx context.Context, token string) (*access.File, error) {
	if token == "" {
		return nil, access.ErrTokenNotFound
	}
	f, err := s.fileWhere(ctx, `f.share_token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrTokenNotFound
	}
	return f, err
}

func (s *Store) FilesOwnedBy(ctx context.Context, owner uuid.UUID) ([]access.File, error) {
	var rows []fileRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+fileColumns+` FROM files f WHERE f.owner_id = $1 ORDER BY f.created_at DESC, f.id`, owner,
	); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	grants, err := grantsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]access.File, len(rows))
	for i, r := range rows {
		out[i] = r.file(grants[r.ID])
	}
	return out, nil
}

func (s *Store) FilesSharedWith(ctx context.Context, user uuid.UUID) ([]access.SharedFile, error) {
	var rows []sharedRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+fileColumns+`, u.name AS owner_name, u.email AS owner_email
		FROM files f
		JOIN file_grants g ON g.file_id = f.id
		JOIN users u ON u.id = f.owner_id
		WHERE g.user_id = $1
		ORDER BY f.created_at DESC, f.id`, user,
	); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	grants, err := grantsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]access.SharedFile, len(rows))
	for i, r := range rows {
		out[i] = access.SharedFile{
			File:       r.fileRow.file(grants[r.ID]),
			OwnerName:  r.OwnerName,
			OwnerEmail: r.OwnerEmail,
		}
	}
	return out, nil
}

// AddGrantees inserts one grant row per identity. Existing rows are left
// alone, so concurrent merges union rather than overwrite.
func (s *Store) AddGrantees(ctx context.Context, fileID uuid.UUID, ids []uuid.UUID) (access.GranteeSet, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`, fileID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, access.ErrFileNotFound
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_grants (file_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			fileID, id,
		); err != nil {
			if isForeignKeyViolation(err) {
				return nil, access.ErrUnknownGrantee
			}
			return nil, err
		}
	}

	grants, err := grantsFor(ctx, tx, []uuid.UUID{fileID})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if set, ok := grants[fileID]; ok {
		return set, nil
	}
	return access.NewGranteeSet(), nil
}

// RedeemToken locks the file row carrying token, so a concurrent revoke
// or re-mint either lands before the expiry check or waits for the grant
// to commit.
func (s *Store) RedeemToken(ctx context.Context, token string, userID uuid.UUID, now time.Time) (access.GranteeSet, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		ID         uuid.UUID    `db:"id"`
		LinkExpiry sql.NullTime `db:"link_expiry"`
	}
	err = tx.GetContext(ctx, &row,
		`SELECT id, link_expiry FROM files WHERE share_token = $1 FOR UPDATE`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if row.LinkExpiry.Valid && now.After(row.LinkExpiry.Time) {
		return nil, access.ErrTokenExpired
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO file_grants (file_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		row.ID, userID,
	); err != nil {
		if isForeignKeyViolation(err) {
			return nil, access.ErrUnknownGrantee
		}
		return nil, err
	}

	grants, err := grantsFor(ctx, tx, []uuid.UUID{row.ID})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if set, ok := grants[row.ID]; ok {
		return set, nil
	}
	return access.NewGranteeSet(), nil
}

func (s *Store) SetLink(ctx context.Context, fileID uuid.UUID, token string, expiry *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET share_token = $2, link_expiry = $3 WHERE id = $1`,
		fileID, nullToken(token), nullExpiry(token, expiry),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, access.ErrFileNotFound)
}

func (s *Store) DeleteFile(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, access.ErrFileNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
