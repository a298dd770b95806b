package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/session"
)

// snapshot is a copy of the session taken under the client lock, safe to
// hand to the Bubble Tea update loop. Epoch changes whenever the mailbox
// is replaced; results carrying an older epoch belong to a mailbox that is
// gone.
type snapshot struct {
	Epoch         int
	Address       string
	Provider      string
	ProviderLabel string
	HasSource     bool
	Read          map[string]struct{}
}

type generatedMsg struct {
	Result session.GenerateResult
	Err    error
	State  snapshot
}

type inboxMsg struct {
	Listing session.Listing
	Err     error
	State   snapshot
}

type openedMsg struct {
	Detail provider.Detail
	Err    error
	State  snapshot
}

type switchedMsg struct {
	Err   error
	State snapshot
}

// autoRefreshMsg carries the generation of the tick chain that produced
// it; ticks from a superseded chain are dropped.
type autoRefreshMsg struct {
	gen int
}

// client serializes session operations issued by concurrent commands.
type client struct {
	mu      sync.Mutex
	manager *session.Manager
	sess    *session.Session
	timeout time.Duration
	epoch   int
}

func newClient(manager *session.Manager, sess *session.Session, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{manager: manager, sess: sess, timeout: timeout}
}

func (c *client) snapshot() snapshot {
	read := make(map[string]struct{}, len(c.sess.Read))
	for id := range c.sess.Read {
		read[id] = struct{}{}
	}
	return snapshot{
		Epoch:         c.epoch,
		Address:       c.sess.Address,
		Provider:      c.sess.Provider,
		ProviderLabel: c.manager.Registry().Label(c.sess.Provider),
		HasSource:     c.manager.SupportsSource(c.sess),
		Read:          read,
	}
}

func (c *client) current() snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *client) generate() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		res, err := c.manager.Generate(ctx, c.sess)
		if err == nil {
			c.epoch++
		}
		return generatedMsg{Result: res, Err: err, State: c.snapshot()}
	}
}

func (c *client) inbox(force bool) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		listing, err := c.manager.Inbox(ctx, c.sess, force)
		return inboxMsg{Listing: listing, Err: err, State: c.snapshot()}
	}
}

func (c *client) open(id string) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		detail, err := c.manager.Open(ctx, c.sess, id)
		return openedMsg{Detail: detail, Err: err, State: c.snapshot()}
	}
}

// cycleProvider switches to the next registered provider.
func (c *client) cycleProvider() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		defer c.mu.Unlock()
		prev := c.sess.Provider
		next := c.manager.Registry().Next(prev)
		err := c.manager.SwitchProvider(c.sess, next)
		if err == nil && next != prev {
			c.epoch++
		}
		return switchedMsg{Err: err, State: c.snapshot()}
	}
}

func autoRefreshTick(interval time.Duration, gen int) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return autoRefreshMsg{gen: gen}
	})
}
