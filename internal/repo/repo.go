package repo

import (
	"context"
	"database/sql"
	"time"

	"finiate/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query method works
// inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite implementation of the agenda and log contracts.
type Store struct {
	DB  *sql.DB
	q   dbtx
	Now func() time.Time
}

var _ domain.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{DB: db, q: db, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) nowMillis() int64 { return s.now().UnixMilli() }

// WithTx runs fn against a transaction-backed view of the store. A nested
// call reuses the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()
	if err := fn(&Store{DB: s.DB, q: tx, Now: s.Now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "commit tx", Err: err}
	}
	return nil
}

func (s *Store) Transactional() bool { return true }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StoreError{Op: op, Err: err}
}

func nullableMillis(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
