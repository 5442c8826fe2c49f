package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	conn    *sql.DB
	session string
}

// Open opens the database and initializes the schema
func Open(configDir string) (*DB, error) {
	dbPath := filepath.Join(configDir, "keyroute.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets the web server read while the recorder writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn, session: uuid.NewString()}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Session identifies this daemon run. Every activation saved through
// this handle carries it.
func (db *DB) Session() string {
	return db.session
}

// initSchema creates the database schema
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		ts_ms INTEGER NOT NULL,

		-- What was pressed and what it became
		key_name TEXT NOT NULL,
		action TEXT NOT NULL,
		rule_index INTEGER NOT NULL,
		outcome TEXT NOT NULL,

		-- Focused window, NULL when unknown
		window_title TEXT,
		window_class TEXT,
		window_binary TEXT,
		context_timed_out BOOLEAN NOT NULL,

		latency_us INTEGER NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activations_ts ON activations(ts_ms);
	CREATE INDEX IF NOT EXISTS idx_activations_key ON activations(key_name);
	CREATE INDEX IF NOT EXISTS idx_activations_outcome ON activations(outcome);
	`

	_, err := db.conn.Exec(schema)
	return err
}
