package database

import (
	"database/sql"
	"fmt"
)

// Schema DDL is idempotent; InitializeSchema runs at every startup instead of
// a versioned migration chain, since the schema is two tables with static
// shape.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		sender     TEXT,
		recipient  TEXT NOT NULL,
		text       TEXT NOT NULL DEFAULT '',
		attachment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, recipient, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient, created_at)`,
}

// Pragmas applied on every open connection pool.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// InitializeSchema applies pragmas and creates tables if they do not exist.
func InitializeSchema(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
