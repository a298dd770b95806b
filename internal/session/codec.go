package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/store"
	"github.io/infrasutra/tempinbox/internal/throttle"
)

// Record converts a session into its persisted form.
func (m *Manager) Record(s *Session) (store.SessionRecord, error) {
	state, err := provider.EncodeState(s.State)
	if err != nil {
		return store.SessionRecord{}, fmt.Errorf("encode mailbox state: %w", err)
	}
	messages, err := json.Marshal(s.Messages)
	if err != nil {
		return store.SessionRecord{}, fmt.Errorf("encode cached messages: %w", err)
	}
	var lastFetch int64
	if !s.Gate.Last.IsZero() {
		lastFetch = s.Gate.Last.UnixMilli()
	}
	return store.SessionRecord{
		ID:        s.ID,
		Provider:  s.Provider,
		Address:   s.Address,
		State:     state,
		Messages:  messages,
		LastFetch: lastFetch,
		CreatedAt: s.CreatedAt.Unix(),
		UpdatedAt: s.UpdatedAt.Unix(),
		ReadIDs:   s.ReadIDs(),
	}, nil
}

// Restore rebuilds a session from its persisted form. A record whose
// provider is no longer registered, or whose state cannot be decoded,
// comes back without a mailbox so that address and state stay paired.
func (m *Manager) Restore(rec store.SessionRecord) *Session {
	s := &Session{
		ID:        rec.ID,
		Provider:  rec.Provider,
		Messages:  []provider.Summary{},
		Read:      make(map[string]struct{}, len(rec.ReadIDs)),
		Gate:      throttle.New(m.pollInterval),
		CreatedAt: rec.Created(),
		UpdatedAt: rec.Updated(),
	}
	if !m.registry.Has(s.Provider) {
		s.Provider = m.defaultProvider
		return s
	}

	state, err := m.registry.DecodeState(rec.Provider, rec.State)
	if err != nil || state == nil || rec.Address == "" {
		if err != nil {
			m.logger.Warn("discarding undecodable mailbox state", "session", rec.ID, "error", err)
		}
		return s
	}
	s.Address = rec.Address
	s.State = state

	if len(rec.Messages) > 0 {
		if err := json.Unmarshal(rec.Messages, &s.Messages); err != nil {
			m.logger.Warn("discarding undecodable message cache", "session", rec.ID, "error", err)
			s.Messages = nil
		}
		if s.Messages == nil {
			s.Messages = []provider.Summary{}
		}
	}
	for _, id := range rec.ReadIDs {
		s.Read[id] = struct{}{}
	}
	if rec.LastFetch > 0 {
		s.Gate.Last = time.UnixMilli(rec.LastFetch)
	}
	return s
}
