package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}

// currentVersion returns 0 for a database that has never been migrated.
func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

// RunMigrations executes all pending database migrations. A dirty schema is
// forced back to its recorded version first.
//
// Parameters:
//   - db: Active database connection
//   - logger: Zap logger for migration logging
//
// Returns:
//   - error: Migration execution error or validation error
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	version, dirty, err := currentVersion(m)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Warn("database migrations are dirty", zap.Uint("version", version))

		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := currentVersion(m)
	if err != nil {
		return fmt.Errorf("failed to get new migration version: %w", err)
	}

	logger.Info("database migrations completed",
		zap.Uint("from_version", version),
		zap.Uint("version", newVersion))

	return nil
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	version, _, err := currentVersion(m)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	logger.Info("migration rolled back", zap.Uint("version", version))

	return nil
}

// MigrateToVersion migrates up or down to targetVersion.
func MigrateToVersion(db *sql.DB, targetVersion uint, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Migrate(targetVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	logger.Info("migration completed", zap.Uint("version", targetVersion))

	return nil
}

// ForceVersion marks targetVersion as applied without running any SQL.
func ForceVersion(db *sql.DB, targetVersion uint, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Force(int(targetVersion)); err != nil {
		return fmt.Errorf("failed to force version %d: %w", targetVersion, err)
	}

	logger.Info("migration version forced", zap.Uint("version", targetVersion))

	return nil
}
