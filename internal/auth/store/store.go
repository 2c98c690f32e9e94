package store

import (
	"context"
	"errors"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories hang off it so a transaction can hand out the
// same repositories bound to the transaction.
type Store interface {
	Principals() Principals

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction scoped Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Principals is the principal lookup used by authentication, plus the writes
// needed to administer principals.
type Principals interface {
	// GetPrincipalByUsername returns the principal with its authorities, or
	// ErrNotFound.
	GetPrincipalByUsername(ctx context.Context, username string) (domain.Principal, error)

	// CreatePrincipal inserts p and its authorities. A taken username yields
	// ErrAlreadyExists.
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// UpdatePasswordHash replaces the stored hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, username, hash string) error

	// CountPrincipals returns the number of stored principals.
	CountPrincipals(ctx context.Context) (int64, error)
}
