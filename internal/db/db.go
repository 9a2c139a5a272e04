// Package db implements the sqlite-backed store for the schedule template,
// per-date overrides, attendance registrations and tracked channel messages.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the studio bot.
type DB struct {
	*sql.DB
	path string
}

// New opens the database at path and runs migrations.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// An in-memory database exists per connection; keep a single one so
	// every query sees the migrated schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Weekly template: one row per (weekday, slot)
		`CREATE TABLE IF NOT EXISTS lessons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day_of_week INTEGER NOT NULL,
			slot TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(day_of_week, slot)
		)`,

		// Per-date overrides of the template
		`CREATE TABLE IF NOT EXISTS lesson_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lesson_date TEXT NOT NULL,
			slot TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(lesson_date, slot)
		)`,

		// Attendance ledger
		`CREATE TABLE IF NOT EXISTS registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			username TEXT,
			display_name TEXT NOT NULL,
			lesson_date TEXT NOT NULL,
			slot TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, lesson_date, slot)
		)`,

		// Posted channel messages, kept so the cleanup job can delete them
		`CREATE TABLE IF NOT EXISTS channel_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL,
			lesson_date TEXT NOT NULL,
			slot TEXT NOT NULL,
			text TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(message_id, lesson_date, slot)
		)`,

		// Single-row settings table
		`CREATE TABLE IF NOT EXISTS bot_settings (
			id INTEGER PRIMARY KEY,
			notifications_enabled BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Audit trail of admin schedule edits
		`CREATE TABLE IF NOT EXISTS admin_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`INSERT INTO bot_settings (id, notifications_enabled)
			VALUES (1, 1)
			ON CONFLICT(id) DO NOTHING`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_overrides_date ON lesson_overrides(lesson_date)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_date ON registrations(lesson_date, slot)`,
		`CREATE INDEX IF NOT EXISTS idx_channel_messages_date ON channel_messages(lesson_date, slot)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
