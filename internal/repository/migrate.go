package repository

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationStatus is the schema state after a migration run.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate applies (up) or rolls back (down) every migration under source,
// e.g. "file://migrations". Running with nothing to do is not an error.
func Migrate(source, connString string, up bool) (MigrationStatus, error) {
	m, err := migrate.New(source, connString)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	run := m.Up
	if !up {
		run = m.Down
	}

	status := MigrationStatus{Changed: true}
	if err := run(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return MigrationStatus{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		status.Changed = false
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return status, nil
	case err != nil:
		return status, fmt.Errorf("failed to read migration version: %w", err)
	}
	status.Version = version
	status.Dirty = dirty
	return status, nil
}
