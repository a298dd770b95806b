package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/throttle"
)

// Config holds the configuration for creating a Manager.
type Config struct {
	Registry        *provider.Registry
	DefaultProvider string
	PollInterval    time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// Manager performs mailbox operations on caller-owned sessions. A Manager
// holds no per-session state and is safe for concurrent use; a single
// Session must not be used concurrently.
type Manager struct {
	registry        *provider.Registry
	defaultProvider string
	pollInterval    time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewManager creates a Manager. An unknown default provider falls back to
// the first registered one.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = throttle.DefaultInterval
	}
	if !cfg.Registry.Has(cfg.DefaultProvider) {
		if names := cfg.Registry.Names(); len(names) > 0 {
			cfg.Logger.Warn("unknown default provider, using first registered",
				"provider", cfg.DefaultProvider,
				"using", names[0],
			)
			cfg.DefaultProvider = names[0]
		}
	}
	return &Manager{
		registry:        cfg.Registry,
		defaultProvider: cfg.DefaultProvider,
		pollInterval:    cfg.PollInterval,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
}

// Registry returns the provider registry the manager dispatches to.
func (m *Manager) Registry() *provider.Registry {
	return m.registry
}

// PollInterval returns the minimum time between inbox fetches.
func (m *Manager) PollInterval() time.Duration {
	return m.pollInterval
}

// New returns a fresh session on the default provider without an address.
func (m *Manager) New(id string) *Session {
	now := m.now()
	return &Session{
		ID:        id,
		Provider:  m.defaultProvider,
		Messages:  []provider.Summary{},
		Read:      make(map[string]struct{}),
		Gate:      throttle.New(m.pollInterval),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SwitchProvider makes name the active provider. The current address, its
// state, the cached listing and the read set are dropped together.
func (m *Manager) SwitchProvider(s *Session, name string) error {
	if !m.registry.Has(name) {
		return fmt.Errorf("%w: %q", provider.ErrUnknownProvider, name)
	}
	if s.Provider == name {
		return nil
	}
	m.logger.Info("switching provider", "session", s.ID, "from", s.Provider, "to", name)
	s.Provider = name
	s.clearMailbox()
	s.UpdatedAt = m.now()
	return nil
}

// GenerateResult describes a successful Generate.
type GenerateResult struct {
	Address  string
	Provider string
	// FellBack is set when the active provider answered 403 and the
	// mailbox was created on the alternate provider instead.
	FellBack bool
	// Refused is the provider that answered 403 when FellBack is set.
	Refused string
}

// Generate creates a new mailbox on the active provider. On failure the
// session is left untouched. An HTTP 403 from the active provider triggers
// one attempt on the alternate provider; if that fails too a *FallbackError
// carrying both causes is returned.
func (m *Manager) Generate(ctx context.Context, s *Session) (GenerateResult, error) {
	p, err := m.registry.Get(s.Provider)
	if err != nil {
		return GenerateResult{}, err
	}

	address, state, err := p.Generate(ctx)
	if err == nil {
		m.commit(s, p.Name(), address, state)
		return GenerateResult{Address: address, Provider: p.Name()}, nil
	}

	alternate := m.registry.Alternate(p.Name())
	if !provider.IsForbidden(err) || alternate == "" {
		m.logger.Warn("generate mailbox failed",
			"session", s.ID,
			"provider", p.Name(),
			"error", err,
		)
		return GenerateResult{}, err
	}

	m.logger.Warn("provider refused mailbox generation, falling back",
		"session", s.ID,
		"provider", p.Name(),
		"fallback", alternate,
	)
	backup, lookupErr := m.registry.Get(alternate)
	if lookupErr != nil {
		return GenerateResult{}, lookupErr
	}
	address, state, fallbackErr := backup.Generate(ctx)
	if fallbackErr != nil {
		return GenerateResult{}, &FallbackError{
			Primary:     p.Name(),
			Fallback:    alternate,
			PrimaryErr:  err,
			FallbackErr: fallbackErr,
		}
	}

	m.commit(s, backup.Name(), address, state)
	return GenerateResult{
		Address:  address,
		Provider: backup.Name(),
		FellBack: true,
		Refused:  p.Name(),
	}, nil
}

func (m *Manager) commit(s *Session, providerName, address string, state provider.State) {
	s.setMailbox(providerName, address, state)
	s.UpdatedAt = m.now()
	m.logger.Info("mailbox generated",
		"session", s.ID,
		"provider", providerName,
		"address", address,
	)
}

// Listing is the outcome of an Inbox call.
type Listing struct {
	Messages []provider.Summary
	// Fetched is set when the provider was queried during this call.
	Fetched bool
	// Stale is set when the provider query failed and Messages is the
	// previously cached listing.
	Stale bool
	// RetryIn is the time until the throttle permits the next fetch.
	RetryIn time.Duration
}

// Inbox returns the mailbox listing. The provider is queried only when the
// throttle gate permits it (or force is set); otherwise the cached listing
// is returned. When the query fails the cached listing is returned along
// with the error.
func (m *Manager) Inbox(ctx context.Context, s *Session, force bool) (Listing, error) {
	if !s.HasMailbox() {
		return Listing{Messages: []provider.Summary{}}, ErrNoMailbox
	}
	if force {
		s.Gate.Reset()
	}

	now := m.now()
	if !s.Gate.Allow(now) {
		return Listing{
			Messages: s.cachedMessages(),
			RetryIn:  s.Gate.Remaining(now),
		}, nil
	}

	p, err := m.registry.Get(s.Provider)
	if err != nil {
		return Listing{Messages: s.cachedMessages(), Stale: true}, err
	}
	msgs, err := p.ListMessages(ctx, s.State)
	if err != nil {
		m.logger.Warn("inbox fetch failed",
			"session", s.ID,
			"provider", s.Provider,
			"error", err,
		)
		return Listing{Messages: s.cachedMessages(), Stale: true}, err
	}

	s.Messages = msgs
	s.UpdatedAt = now
	m.logger.Debug("inbox fetched", "session", s.ID, "provider", s.Provider, "count", len(msgs))
	return Listing{Messages: s.cachedMessages(), Fetched: true}, nil
}

// Open fetches the full message and marks it read on success.
func (m *Manager) Open(ctx context.Context, s *Session, id string) (provider.Detail, error) {
	if !s.HasMailbox() {
		return provider.Detail{}, ErrNoMailbox
	}
	p, err := m.registry.Get(s.Provider)
	if err != nil {
		return provider.Detail{}, err
	}
	detail, err := p.ReadMessage(ctx, s.State, id)
	if err != nil {
		return provider.Detail{}, fmt.Errorf("read message %s: %w", id, err)
	}
	s.markRead(id)
	s.UpdatedAt = m.now()
	return detail, nil
}

// Source returns the raw RFC 822 source of a message when the active
// provider supports it.
func (m *Manager) Source(ctx context.Context, s *Session, id string) ([]byte, error) {
	if !s.HasMailbox() {
		return nil, ErrNoMailbox
	}
	p, err := m.registry.Get(s.Provider)
	if err != nil {
		return nil, err
	}
	reader, ok := p.(provider.SourceReader)
	if !ok {
		return nil, ErrSourceUnsupported
	}
	raw, err := reader.ReadSource(ctx, s.State, id)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", id, err)
	}
	return raw, nil
}

// SupportsSource reports whether the session's provider can return raw sources.
func (m *Manager) SupportsSource(s *Session) bool {
	p, err := m.registry.Get(s.Provider)
	if err != nil {
		return false
	}
	_, ok := p.(provider.SourceReader)
	return ok
}
