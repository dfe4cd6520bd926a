package db

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose"
)

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateStatus = "status"
)

// Migrate applies or reports the SQL migrations in dir.
func Migrate(databaseURL, dir, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer sqlDB.Close()

	switch command {
	case MigrateUp:
		err = goose.Up(sqlDB, dir)
	case MigrateStatus:
		err = goose.Status(sqlDB, dir)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
