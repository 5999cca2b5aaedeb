package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/johkker/delice/migrations"
	"github.com/pressly/goose/v3"
)

// Migrate applies all pending embedded migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return db.RunMigrations(ctx, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo...)
// against the embedded migrations.
func (db *DB) RunMigrations(ctx context.Context, command string, args ...string) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, sqlDB, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err == nil {
		db.logger.Info("database migrations", "command", command, "version", version)
	}
	return nil
}
