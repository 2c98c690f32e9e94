package sqlite

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tollgate-dev/tollgate/internal/auth/store/drivers/sqlite/migrations"
)

// ApplyMigrations applies the embedded migrations.
func (s *Store) ApplyMigrations() error {
	// 1. Database driver
	driver, err := migratesqlite.WithInstance(s.DB(), &migratesqlite.Config{})
	if err != nil {
		return err
	}

	// 2. Embedded source
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	// 3. Run
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
