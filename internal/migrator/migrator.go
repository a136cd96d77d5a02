// Package migrator applies the embedded archive schema with golang-migrate.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator manages database migrations.
type Migrator struct {
	migrationsFS fs.FS
}

// NewWithFS creates a Migrator reading .sql files from the root of migrationsFS.
func NewWithFS(migrationsFS fs.FS) (*Migrator, error) {
	if migrationsFS == nil {
		return nil, errors.New("migrationsFS cannot be nil")
	}
	return &Migrator{migrationsFS: migrationsFS}, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up(_ context.Context, databaseURL string) error {
	mig, err := m.open(databaseURL)
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
func (m *Migrator) Version(_ context.Context, databaseURL string) (version uint, dirty bool, err error) {
	mig, err := m.open(databaseURL)
	if err != nil {
		return 0, false, err
	}
	defer mig.Close()

	version, dirty, err = mig.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			// nothing applied yet
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) open(databaseURL string) (*migrate.Migrate, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}

	source, err := iofs.New(m.migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	mig, err := migrate.NewWithSourceInstance("iofs", source, convertToPgx5URL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return mig, nil
}

// convertToPgx5URL rewrites postgres URLs to the scheme the pgx/v5 driver registers.
func convertToPgx5URL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}
