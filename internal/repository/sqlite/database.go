package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Database wraps the SQL database connection
type Database struct {
	db *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{db: db}

	if err := database.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// initSchema creates the database tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id INTEGER PRIMARY KEY,
		chat_id INTEGER DEFAULT 0,
		work_duration INTEGER NOT NULL,
		break_duration INTEGER NOT NULL,
		long_break_duration INTEGER NOT NULL,
		sessions_before_long_break INTEGER NOT NULL,
		max_sessions INTEGER NOT NULL,
		is_active INTEGER DEFAULT 0,
		phase TEXT NOT NULL DEFAULT 'study',
		completed_sessions INTEGER DEFAULT 0,
		phase_duration INTEGER DEFAULT 0,
		start_time DATETIME,
		phase_ends_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS group_sessions (
		session_id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		host_user_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'waiting',
		phase TEXT NOT NULL DEFAULT 'study',
		work_duration INTEGER NOT NULL,
		break_duration INTEGER NOT NULL,
		long_break_duration INTEGER NOT NULL,
		sessions_before_long_break INTEGER NOT NULL,
		max_sessions INTEGER NOT NULL,
		max_participants INTEGER DEFAULT 5,
		completed_sessions INTEGER DEFAULT 0,
		phase_duration INTEGER DEFAULT 0,
		start_time DATETIME,
		phase_ends_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS group_participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER DEFAULT 1,
		FOREIGN KEY (session_id) REFERENCES group_sessions(session_id) ON DELETE CASCADE,
		UNIQUE(session_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active);
	CREATE INDEX IF NOT EXISTS idx_group_sessions_status ON group_sessions(status);
	CREATE INDEX IF NOT EXISTS idx_group_sessions_chat ON group_sessions(chat_id, status);
	CREATE INDEX IF NOT EXISTS idx_group_participants_session ON group_participants(session_id);
	CREATE INDEX IF NOT EXISTS idx_group_participants_user ON group_participants(user_id, is_active);
	`

	_, err := d.db.Exec(schema)
	return err
}
