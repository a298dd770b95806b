package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when no session exists for an id.
var ErrSessionNotFound = errors.New("session not found")

type Store struct {
	db *sqlx.DB
	// listings holds cached inbox listings of file-backed databases in
	// process memory so they never reach disk. It is nil for in-memory
	// databases, which keep them in the sessions table.
	listings *listingCache
}

type cachedListing struct {
	messages  []byte
	lastFetch int64
}

type listingCache struct {
	mu      sync.Mutex
	entries map[string]cachedListing
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sqlx.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	store := &Store{db: db}
	if !inMemory {
		store.listings = &listingCache{entries: make(map[string]cachedListing)}
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            provider TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            state BLOB,
            messages BLOB,
            last_fetch INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS read_marks (
            session_id TEXT NOT NULL,
            message_id TEXT NOT NULL,
            read_at INTEGER NOT NULL,
            PRIMARY KEY (session_id, message_id),
            FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// SaveSession inserts or replaces a session together with its read marks.
// File-backed stores keep the message cache and the last fetch time in
// process memory only.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	if s.listings != nil {
		s.listings.put(rec.ID, cachedListing{messages: rec.Messages, lastFetch: rec.LastFetch})
		rec.Messages = nil
		rec.LastFetch = 0
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO sessions
        (id, provider, address, state, messages, last_fetch, created_at, updated_at)
        VALUES (:id, :provider, :address, :state, :messages, :last_fetch, :created_at, :updated_at)
        ON CONFLICT(id) DO UPDATE SET
            provider = excluded.provider,
            address = excluded.address,
            state = excluded.state,
            messages = excluded.messages,
            last_fetch = excluded.last_fetch,
            updated_at = excluded.updated_at;`, rec)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM read_marks WHERE session_id = ?;`, rec.ID); err != nil {
		return fmt.Errorf("reset read marks: %w", err)
	}
	for _, messageID := range rec.ReadIDs {
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO read_marks (session_id, message_id, read_at)
            VALUES (?, ?, ?);`, rec.ID, messageID, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert read mark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// GetSession loads a session and its read marks.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	err := s.db.GetContext(ctx, &rec, `SELECT id, provider, address, state, messages, last_fetch, created_at, updated_at
        FROM sessions WHERE id = ?;`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, ErrSessionNotFound
		}
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	var marks []ReadMark
	if err := s.db.SelectContext(ctx, &marks, `SELECT session_id, message_id, read_at
        FROM read_marks WHERE session_id = ? ORDER BY read_at, message_id;`, id); err != nil {
		return SessionRecord{}, fmt.Errorf("get read marks: %w", err)
	}
	rec.ReadIDs = make([]string, 0, len(marks))
	for _, mark := range marks {
		rec.ReadIDs = append(rec.ReadIDs, mark.MessageID)
	}
	if s.listings != nil {
		cached := s.listings.get(id)
		rec.Messages = cached.messages
		rec.LastFetch = cached.lastFetch
	}
	return rec, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if s.listings != nil {
		s.listings.drop(id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return rows > 0, nil
}

// PruneSessions removes sessions not updated since before cutoff.
func (s *Store) PruneSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	var stale []string
	if s.listings != nil {
		if err := s.db.SelectContext(ctx, &stale, `SELECT id FROM sessions WHERE updated_at < ?;`, cutoff.Unix()); err != nil {
			return 0, fmt.Errorf("prune sessions: %w", err)
		}
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?;`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if s.listings != nil {
		s.listings.drop(stale...)
	}
	return rows, nil
}

func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM sessions;`); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

func (c *listingCache) put(id string, entry cachedListing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry
}

func (c *listingCache) get(id string) cachedListing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

func (c *listingCache) drop(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
}
