// Package storage provides SQLite persistence for update and transition
// history. History is observability only: it is never consulted to decide
// whether a DNS update is needed, and write failures never fail a run.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Initialize opens the history database and creates tables.
func Initialize(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "gwdns.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	wrapped := &DB{DB: db}
	if err := wrapped.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return wrapped, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS update_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reason TEXT NOT NULL,
			applied INTEGER DEFAULT 0,
			dry_run INTEGER DEFAULT 0,
			healthy_ips TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_update_history_timestamp ON update_history(timestamp)`,

		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gateway TEXT NOT NULL,
			prev_state TEXT NOT NULL,
			new_state TEXT NOT NULL,
			loss_pct REAL,
			latency_ms REAL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_gateway ON transitions(gateway)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
