// Package position persists the log resume position across restarts.
//
// The engine records (file identity, byte offset) after frames are fully
// classified, never mid-frame, so a restart re-reads and re-parses at worst
// one partially persisted stretch of already-processed frames. A store that
// cannot be read at startup is treated as absent rather than fatal: resuming
// from a wrong offset is worse than reprocessing.
package position

import "context"

// Position is the durable resume record for one log file.
type Position struct {
	// FileID identifies the file the offset belongs to. An identity
	// mismatch at startup (rotated or replaced file) invalidates Offset.
	FileID string
	// Offset is the byte offset of the next unread frame boundary.
	Offset int64
	// LastSize is the file size when the position was recorded, used as a
	// truncation signal when richer identity data is unavailable.
	LastSize int64
}

// Store is the persistence boundary for positions.
type Store interface {
	// Load returns the stored position. The second return is false when no
	// position has been saved yet.
	Load(ctx context.Context) (Position, bool, error)
	// Save durably records pos, replacing any previous position.
	Save(ctx context.Context, pos Position) error
	Close() error
}

// MemoryStore is an in-process Store for tests and for running without
// persistence (--from-beginning with no state file).
type MemoryStore struct {
	pos   Position
	saved bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (Position, bool, error) {
	return m.pos, m.saved, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, pos Position) error {
	m.pos = pos
	m.saved = true
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
