package position

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// SQLiteStore persists positions in a single-row SQLite table. The
// position record shares its state file with the card lookup cache.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the state database at path and
// applies migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	// WAL keeps the frequent position writes from blocking cache readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS log_position (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		file_id TEXT NOT NULL,
		byte_offset INTEGER NOT NULL,
		last_size INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Load implements Store.
// A missing row is (zero, false, nil); a malformed row is surfaced as an
// error so the caller can log and fall back to reading from the beginning.
func (s *SQLiteStore) Load(ctx context.Context) (Position, bool, error) {
	var pos Position
	row := s.db.QueryRowContext(ctx,
		"SELECT file_id, byte_offset, last_size FROM log_position WHERE id = 1")
	err := row.Scan(&pos.FileID, &pos.Offset, &pos.LastSize)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("loading position: %w", err)
	}
	if pos.Offset < 0 || pos.FileID == "" {
		return Position{}, false, fmt.Errorf("loading position: corrupt record (offset=%d, file_id=%q)", pos.Offset, pos.FileID)
	}
	return pos, true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, pos Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_position (id, file_id, byte_offset, last_size, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			file_id = excluded.file_id,
			byte_offset = excluded.byte_offset,
			last_size = excluded.last_size,
			updated_at = excluded.updated_at`,
		pos.FileID, pos.Offset, pos.LastSize)
	if err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	return nil
}

// DB exposes the underlying handle so other state (the card cache) can share
// one database file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
