package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxEntries is how many commands are retained per server.
const DefaultMaxEntries = 1000

// Entry is one recorded console command.
type Entry struct {
	ID      int64     `json:"id"`
	Server  string    `json:"server"`
	Command string    `json:"command"`
	At      time.Time `json:"at"`
}

// Store keeps per-server command history with bounded retention.
type Store struct {
	db         *Database
	maxEntries int
}

// NewStore opens the history database and prepares its schema.
// maxEntries bounds retention per server; zero or negative selects
// DefaultMaxEntries.
func NewStore(dbPath string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: database, maxEntries: maxEntries}
	if err := store.migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server TEXT NOT NULL,
			command TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_commands_server ON commands(server, id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// Record stores a command for the given server. A command equal to the
// server's most recent entry is skipped, matching shell history
// behavior. Old entries past the retention limit are trimmed.
func (s *Store) Record(server, command string) error {
	if command == "" {
		return nil
	}

	return s.db.Transaction(func(tx *sql.Tx) error {
		var last string
		err := tx.QueryRow(
			"SELECT command FROM commands WHERE server = ? ORDER BY id DESC LIMIT 1",
			server).Scan(&last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && last == command {
			return nil
		}

		if _, err := tx.Exec(
			"INSERT INTO commands (server, command, created_at) VALUES (?, ?, ?)",
			server, command, time.Now().Unix()); err != nil {
			return err
		}

		_, err = tx.Exec(`
			DELETE FROM commands
			WHERE server = ? AND id NOT IN (
				SELECT id FROM commands WHERE server = ? ORDER BY id DESC LIMIT ?
			)`,
			server, server, s.maxEntries)
		return err
	})
}

// Recent returns up to limit of the server's newest commands in
// chronological order.
func (s *Store) Recent(server string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = s.maxEntries
	}

	rows, err := s.db.Query(`
		SELECT id, server, command, created_at FROM (
			SELECT id, server, command, created_at
			FROM commands WHERE server = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		server, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Server, &entry.Command, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.At = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of stored commands for a server.
func (s *Store) Count(server string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM commands WHERE server = ?", server).Scan(&count)
	return count, err
}
