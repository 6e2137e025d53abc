package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const postgresMigrationsPath = "postgres"

//go:embed postgres/*.sql
var migrationsFS embed.FS

// RunPostgres applies all pending up migrations against databaseURL
// (postgres://...). The migrator uses its own connection and closes it.
func RunPostgres(databaseURL string) error {
	return withPostgresMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate postgres: up: %w", err)
		}
		return nil
	})
}

// DownPostgres rolls back steps migrations; steps <= 0 rolls back everything.
func DownPostgres(databaseURL string, steps int) error {
	return withPostgresMigrator(databaseURL, func(m *migrate.Migrate) error {
		var err error
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate postgres: down: %w", err)
		}
		return nil
	})
}

// PostgresVersion returns the applied schema version and whether the last
// migration left the schema dirty.
func PostgresVersion(databaseURL string) (version uint, dirty bool, err error) {
	err = withPostgresMigrator(databaseURL, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return fmt.Errorf("migrate postgres: version: %w", verr)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func withPostgresMigrator(databaseURL string, fn func(m *migrate.Migrate) error) (err error) {
	if databaseURL == "" {
		return fmt.Errorf("migrate postgres: empty database url")
	}

	sourceDriver, err := iofs.New(migrationsFS, postgresMigrationsPath)
	if err != nil {
		return fmt.Errorf("migrate postgres: init source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate postgres: init migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil && srcErr != nil {
			err = fmt.Errorf("migrate postgres: close source: %w", srcErr)
		}
		if err == nil && dbErr != nil {
			err = fmt.Errorf("migrate postgres: close database: %w", dbErr)
		}
	}()

	return fn(m)
}
