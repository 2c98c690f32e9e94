package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/tollgate-dev/tollgate/internal/auth/store/drivers/sqldb"
)

const uniqueViolation = "23505"

// Store is the PostgreSQL backed store.Store.
type Store struct {
	*sqldb.Store
}

// Dialect is the PostgreSQL flavour of sqldb.Dialect.
var Dialect = sqldb.Dialect{
	Name:              "postgres",
	Numbered:          true,
	IsUniqueViolation: isUniqueViolation,
}

// NewStore opens dsn (a postgres:// URL or key=value string) through pgx.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{Store: sqldb.New(db, Dialect)}, nil
}

// Open is NewStore followed by a bounded ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	st, err := NewStore(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
