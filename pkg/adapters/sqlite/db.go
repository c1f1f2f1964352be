package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	state       TEXT NOT NULL DEFAULT '',
	context     BLOB,
	interface   TEXT NOT NULL DEFAULT '',
	session     BLOB,
	version     TEXT NOT NULL DEFAULT '',
	active_at   INTEGER NOT NULL DEFAULT 0,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	entities    TEXT NOT NULL,
	accepted_at TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

CREATE TABLE IF NOT EXISTS bot_messages (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	state       TEXT NOT NULL,
	text        TEXT NOT NULL,
	buttons     TEXT
);
CREATE INDEX IF NOT EXISTS idx_bot_messages_session ON bot_messages(session_id, id);
`

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the store and the turn log.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
