package store

import "time"

// SessionRecord is the persisted form of a dashboard session. State and
// Messages are JSON blobs owned by the session layer.
type SessionRecord struct {
	ID        string   `db:"id"`
	Provider  string   `db:"provider"`
	Address   string   `db:"address"`
	State     []byte   `db:"state"`
	Messages  []byte   `db:"messages"`
	LastFetch int64    `db:"last_fetch"`
	CreatedAt int64    `db:"created_at"`
	UpdatedAt int64    `db:"updated_at"`
	ReadIDs   []string `db:"-"`
}

// ReadMark records that a message was opened in a session.
type ReadMark struct {
	SessionID string `db:"session_id"`
	MessageID string `db:"message_id"`
	ReadAt    int64  `db:"read_at"`
}

// Created returns CreatedAt as a time.
func (r SessionRecord) Created() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// Updated returns UpdatedAt as a time.
func (r SessionRecord) Updated() time.Time {
	return time.Unix(r.UpdatedAt, 0)
}
