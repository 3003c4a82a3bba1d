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

type userRow struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) user() *access.User {
	return &access.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

const userColumns = `id, name, email, password_hash, created_at`

func (s *Store) CreateUser(ctx context.Context, u *access.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return access.ErrDuplicateEmail
	}
	return err
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*access.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.user(), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*access.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.user(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]access.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY name, email`); err != nil {
		return nil, err
	}
	out := make([]access.User, len(rows))
	for i, r := range rows {
		out[i] = *r.user()
	}
	return out, nil
}

func (s *Store) MissingUsers(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var found []uuid.UUID
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	present := access.NewGranteeSet(found...)
	var missing []uuid.UUID
	for _, id := range ids {
		if !present.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
