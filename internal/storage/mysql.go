package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/go-sql-driver/mysql"
)

const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

const (
	connectAttempts = 15
	connectBackoff  = 3 * time.Second
)

var mysqlDialect = dialect{
	name:       TypeMySQL,
	lockSuffix: " FOR UPDATE",
	isDuplicate: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
	},
}

// NewMySQLStorage wraps an already migrated MySQL handle.
func NewMySQLStorage(db *sql.DB) *SQLStorage {
	return &SQLStorage{db: db, dialect: mysqlDialect}
}

// OpenMySQL waits for the server, creates the database when missing, runs
// migrations and returns the storage.
func OpenMySQL(ctx context.Context, dsn string) (*SQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	// UPDATE reports matched rows, so a no-op write is not a missing row.
	cfg.ClientFoundRows = true
	dbname := cfg.DBName
	if dbname == "" {
		return nil, fmt.Errorf("mysql dsn has no database name")
	}

	if err := ensureDatabase(ctx, cfg.Clone(), dbname); err != nil {
		return nil, err
	}

	logging.Logger.Info("Connecting to database...")
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logging.Logger.Info("Connected to database successfully")

	if err := runMySQLMigrations(cfg.FormatDSN()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewMySQLStorage(db), nil
}

func ensureDatabase(ctx context.Context, adminCfg *mysql.Config, dbname string) error {
	adminCfg.DBName = ""

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	connector, err := mysql.NewConnector(adminCfg)
	if err != nil {
		return fmt.Errorf("failed to create admin mysql connector: %w", err)
	}
	adminDb := sql.OpenDB(connector)
	defer adminDb.Close()

	if err := waitForDatabase(ctx, adminDb); err != nil {
		return err
	}

	var existing string
	checkQuery := "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	err = adminDb.QueryRowContext(ctx, checkQuery, dbname).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		logging.Logger.Infof("Database '%s' does not exist, creating...", dbname)
		createQuery := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;", dbname)
		if _, err := adminDb.ExecContext(ctx, createQuery); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	return nil
}

func waitForDatabase(ctx context.Context, db *sql.DB) error {
	for i := 0; i < connectAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/%d)", i+1, connectAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts", connectAttempts)
}
