// Package postgres implements the access stores on PostgreSQL via sqlx.
//
// Grants live in their own table keyed by (file_id, user_id), so merges
// and token redemptions are row inserts that cannot overwrite each other.
package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"secure-file-share/internal/access"
)

// Store is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

var (
	_ access.UserStore   = (*Store)(nil)
	_ access.FileStore   = (*Store)(nil)
	_ access.Auditor     = (*Store)(nil)
	_ access.AuditReader = (*Store)(nil)
)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgerrcode.ForeignKeyViolation
}
