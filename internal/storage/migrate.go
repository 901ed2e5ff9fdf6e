package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"expensetracker/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// stateMigrationsTable keeps the client state schema version apart from any
// other tool sharing the file.
const stateMigrationsTable = "client_state_migrations"

// ErrDirtySchema means an earlier migration stopped halfway. The state file
// needs manual repair or removal.
var ErrDirtySchema = errors.New("client state schema is dirty")

// migrateState brings the client state file at dbPath to the latest schema
// and returns the resulting version.
func migrateState(dbPath string, logger *log.Logger) (uint, error) {
	// Closing the migrator closes its handle, so it gets its own.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open state for migration: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: stateMigrationsTable})
	if err != nil {
		return 0, fmt.Errorf("state migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("state migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("state migrator: %w", err)
	}
	defer m.Close()

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	if dirty {
		return before, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("migrate client state: %w", err)
	}

	after, _, err := schemaVersion(m)
	if err != nil {
		return before, err
	}
	if after != before {
		logger.Info("Client state schema migrated",
			log.FieldOperation, log.OpMigrate, log.FieldPath, dbPath,
			"from_version", before, "to_version", after)
	} else {
		logger.Debug("Client state schema up to date",
			log.FieldOperation, log.OpMigrate, "version", after)
	}
	return after, nil
}

// schemaVersion reports 0 for a file that was never migrated.
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read state schema version: %w", err)
	}
	return v, dirty, nil
}
