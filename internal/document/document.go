// Package document is the SQLite-backed host document: layers with puppet
// pins, sway control sets, live bindings, keyframes and the timeline.
package document

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/sway/internal/bake"
)

// Timeline used until one is imported.
const (
	DefaultFrameRate = 24.0
	DefaultDuration  = 10.0
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS timeline (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	frame_rate REAL NOT NULL,
	duration   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS layers (
	name    TEXT PRIMARY KEY,
	has_rig INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pins (
	layer    TEXT NOT NULL REFERENCES layers(name) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	ord      INTEGER NOT NULL,
	x        REAL NOT NULL,
	y        REAL NOT NULL,
	selected INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (layer, name)
);

CREATE TABLE IF NOT EXISTS controls (
	name       TEXT PRIMARY KEY,
	layer      TEXT NOT NULL,
	params     TEXT NOT NULL,
	chain      TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bindings (
	layer        TEXT NOT NULL,
	pin          TEXT NOT NULL,
	control      TEXT NOT NULL REFERENCES controls(name),
	chain_index  INTEGER NOT NULL,
	parent_index INTEGER NOT NULL,
	rest_length  REAL NOT NULL,
	rest_x       REAL NOT NULL,
	rest_y       REAL NOT NULL,
	PRIMARY KEY (layer, pin)
);

CREATE TABLE IF NOT EXISTS keyframes (
	layer TEXT NOT NULL,
	pin   TEXT NOT NULL,
	t     REAL NOT NULL,
	x     REAL NOT NULL,
	y     REAL NOT NULL,
	PRIMARY KEY (layer, pin, t)
);

CREATE INDEX IF NOT EXISTS idx_bindings_control ON bindings(control);
`

// DB wraps a sql.DB with document operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the document database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("document: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("document: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("document: apply schema: %w", err)
	}
	if _, err := conn.Exec(`INSERT OR IGNORE INTO timeline (id, frame_rate, duration) VALUES (1, ?, ?)`,
		DefaultFrameRate, DefaultDuration); err != nil {
		conn.Close()
		return nil, fmt.Errorf("document: seed timeline: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Timeline returns the composition frame rate and duration.
func (db *DB) Timeline(ctx context.Context) (bake.Timeline, error) {
	var tl bake.Timeline
	err := db.conn.QueryRowContext(ctx, `SELECT frame_rate, duration FROM timeline WHERE id = 1`).
		Scan(&tl.FrameRate, &tl.Duration)
	if err != nil {
		return tl, fmt.Errorf("document: timeline: %w", err)
	}
	return tl, nil
}

// SetTimeline replaces the composition frame rate and duration.
func (db *DB) SetTimeline(ctx context.Context, tl bake.Timeline) error {
	if err := tl.Validate(); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx, `UPDATE timeline SET frame_rate = ?, duration = ? WHERE id = 1`,
		tl.FrameRate, tl.Duration)
	if err != nil {
		return fmt.Errorf("document: set timeline: %w", err)
	}
	return nil
}
