// Package session holds the explicit per-user mailbox state and the
// operations the dashboards perform on it.
package session

import (
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/throttle"
)

// Session is one user's dashboard state. Address and State are always set
// and cleared together and belong to Provider.
type Session struct {
	ID        string
	Provider  string
	Address   string
	State     provider.State
	Messages  []provider.Summary
	Read      map[string]struct{}
	Gate      throttle.Gate
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMailbox reports whether an address has been generated.
func (s *Session) HasMailbox() bool {
	return s.Address != "" && s.State != nil
}

// IsRead reports whether the message id was opened in this session.
func (s *Session) IsRead(id string) bool {
	_, ok := s.Read[id]
	return ok
}

// ReadIDs returns the read set as a slice.
func (s *Session) ReadIDs() []string {
	ids := make([]string, 0, len(s.Read))
	for id := range s.Read {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) markRead(id string) {
	if s.Read == nil {
		s.Read = make(map[string]struct{})
	}
	s.Read[id] = struct{}{}
}

// setMailbox commits a freshly generated mailbox and drops everything that
// belonged to the previous one.
func (s *Session) setMailbox(providerName, address string, state provider.State) {
	s.Provider = providerName
	s.Address = address
	s.State = state
	s.Messages = []provider.Summary{}
	s.Read = make(map[string]struct{})
	s.Gate.Reset()
}

func (s *Session) clearMailbox() {
	s.Address = ""
	s.State = nil
	s.Messages = []provider.Summary{}
	s.Read = make(map[string]struct{})
	s.Gate.Reset()
}

func (s *Session) cachedMessages() []provider.Summary {
	out := make([]provider.Summary, len(s.Messages))
	copy(out, s.Messages)
	return out
}
