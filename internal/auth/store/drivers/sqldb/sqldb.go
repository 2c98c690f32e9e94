// Package sqldb implements store.Store over database/sql. The sqlite and
// postgres drivers supply the connection, a Dialect and their migrations.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/tollgate-dev/tollgate/internal/auth/store"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string

	// Numbered turns "?" placeholders into "$1", "$2", ... when true.
	Numbered bool

	// IsUniqueViolation reports a unique constraint failure.
	IsUniqueViolation func(error) bool
}

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the non-transactional store. Drivers embed it and add
// ApplyMigrations.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Principals() store.Principals {
	return &principalsRepo{q: s.db, d: s.dialect}
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, d: s.dialect}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx *sql.Tx
	d  Dialect
}

func (t *txStore) Principals() store.Principals { return &principalsRepo{q: t.tx, d: t.d} }

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close and Ping are no-ops; the outer pool owns the connection.
func (t *txStore) Close() error                         { return nil }
func (t *txStore) Ping(context.Context) error           { return nil }
func (t *txStore) ApplyMigrations() error               { return nil }
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return sql.ErrTxDone
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
