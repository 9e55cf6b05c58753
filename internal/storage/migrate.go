package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest calendar schema version.
const SchemaVersion = 1

// Migrate creates the calendar tables and records SchemaVersion. It is a
// no-op on a database already at SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS zones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			start_clock TEXT NOT NULL,
			end_clock TEXT NOT NULL,
			from_date TEXT NOT NULL DEFAULT '',
			days TEXT NOT NULL DEFAULT '',
			zone_type TEXT NOT NULL,
			energy_level TEXT NOT NULL,
			min_duration INTEGER NOT NULL,
			buffer_required INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create zones table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			calendar_id TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			buffer_required INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create events table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_events_kind_start ON events(kind, start_ms);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_events_kind_start: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
