package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/mysql"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// runMySQLMigrations applies every pending migration through its own
// connection, closed when done.
func runMySQLMigrations(dsn string) error {
	src, err := iofs.New(migrationFiles, "migrations/mysql")
	if err != nil {
		return fmt.Errorf("failed to load mysql migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "mysql://"+dsn)
	if err != nil {
		return fmt.Errorf("failed to init mysql migrations: %w", err)
	}
	defer m.Close()
	return applyMigrations(m, TypeMySQL)
}

// runSQLiteMigrations works on db itself so an in-memory database sees its
// schema. The migrate instance is not closed since that would close db.
func runSQLiteMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to load sqlite migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, TypeSQLite, driver)
	if err != nil {
		return fmt.Errorf("failed to init sqlite migrations: %w", err)
	}
	return applyMigrations(m, TypeSQLite)
}

func applyMigrations(m *migrate.Migrate, name string) error {
	logging.Logger.Infof("Running %s migrations...", name)
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logging.Logger.Info("no new migration")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s migrations: %w", name, err)
	}
	version, dirty, verr := m.Version()
	if verr == nil {
		logging.Logger.Infof("all migrations applied successfully, version=%d dirty=%t", version, dirty)
	}
	return nil
}
