package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// LatestVersion asks Migrate for the newest migration.
const LatestVersion = -1

// MigratePostgres brings the schema at databaseURL to target.
//   - target < 0 migrates to the latest version.
//   - target == 0 rolls every migration back.
//   - target > 0 migrates to that version.
func MigratePostgres(databaseURL string, target int, logger *slog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}
	return runMigrations("postgres", driver, target, logger)
}

// migrateSQLite runs the embedded SQLite migrations over an open handle.
// The handle stays open.
func migrateSQLite(db *sql.DB, logger *slog.Logger) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	return runMigrations("sqlite", driver, LatestVersion, logger)
}

func runMigrations(dialect string, driver database.Driver, target int, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("access %s migrations: %w", dialect, err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "moneyball", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, force a version before migrating", current)
	}

	switch {
	case target < 0:
		err = m.Up()
	case target == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(target))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("schema up to date", "dialect", dialect, "version", current)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s to %d: %w", dialect, target, err)
	}

	next, _, _ := m.Version()
	logger.Info("schema migrated", "dialect", dialect, "from", current, "to", next)
	return nil
}
