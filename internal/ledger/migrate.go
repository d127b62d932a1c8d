package ledger

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

// Migrate ensures the SQLite schema exists and is at SchemaVersion.
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
		CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			fields TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create threads table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			disclosed TEXT NULL,
			at TEXT NOT NULL,
			FOREIGN KEY(thread_id) REFERENCES threads(thread_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create turns table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS processed_messages (
			message_id TEXT PRIMARY KEY,
			at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create processed_messages table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS background_checks (
			thread_id TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			at TEXT NOT NULL,
			FOREIGN KEY(thread_id) REFERENCES threads(thread_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create background_checks table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_turns_thread_at ON turns(thread_id, at);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_turns_thread_at: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_threads_status ON threads(status);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_threads_status: %w", err)
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
