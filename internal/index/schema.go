// Package index provides the SQLite-backed catalogue of baselines and the
// history of verification runs.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS baselines (
	path       TEXT PRIMARY KEY,
	grp        TEXT NOT NULL,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	width      INTEGER NOT NULL DEFAULT 0,
	height     INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_baselines_grp ON baselines(grp);

CREATE TABLE IF NOT EXISTS verifications (
	id                 TEXT PRIMARY KEY,
	grp                TEXT NOT NULL,
	name               TEXT NOT NULL,
	matched            INTEGER NOT NULL,
	baseline_created   INTEGER NOT NULL DEFAULT 0,
	dimension_mismatch INTEGER NOT NULL DEFAULT 0,
	ratio              REAL NOT NULL DEFAULT 0,
	diff_pixels        INTEGER NOT NULL DEFAULT 0,
	total_pixels       INTEGER NOT NULL DEFAULT 0,
	baseline_width     INTEGER NOT NULL DEFAULT 0,
	baseline_height    INTEGER NOT NULL DEFAULT 0,
	current_width      INTEGER NOT NULL DEFAULT 0,
	current_height     INTEGER NOT NULL DEFAULT 0,
	error              TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_key ON verifications(grp, name, created_at);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
