package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if err := ensureRRuleColumn(ctx, db); err != nil {
		return err
	}

	return nil
}

func ensureRRuleColumn(ctx context.Context, db *sql.DB) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM pragma_table_info('events') WHERE name = 'rrule' LIMIT 1").Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check events.rrule column: %w", err)
	}

	if _, err := db.ExecContext(ctx, "ALTER TABLE events ADD COLUMN rrule TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("add events.rrule column: %w", err)
	}

	return nil
}
