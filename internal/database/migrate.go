package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const schemaDir = "schema"

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(schemaFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("internal/database: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, schemaDir); err != nil {
		return fmt.Errorf("internal/database: migrate up: %w", err)
	}
	return nil
}

// Reset rolls every migration back.
func Reset(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(schemaFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("internal/database: set goose dialect: %w", err)
	}
	if err := goose.ResetContext(ctx, db, schemaDir); err != nil {
		return fmt.Errorf("internal/database: migrate reset: %w", err)
	}
	return nil
}
