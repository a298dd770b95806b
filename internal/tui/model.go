// Package tui is the terminal dashboard: a Bubble Tea program driving one
// in-process session.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.io/infrasutra/tempinbox/internal/inbox"
	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/session"
)

// DefaultAutoRefresh is the auto-refresh period when none is configured.
const DefaultAutoRefresh = 8 * time.Second

type Config struct {
	Manager     *session.Manager
	Session     *session.Session
	AutoRefresh time.Duration
	// RequestTimeout bounds each provider call made from a command.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type viewState int

const (
	listView viewState = iota
	detailView
)

type statusKind int

const (
	statusNormal statusKind = iota
	statusNotice
	statusError
)

// Model is the root Bubble Tea model.
type Model struct {
	client *client
	keys   KeyMap
	logger *slog.Logger

	spinner   spinner.Model
	search    textinput.Model
	searching bool
	viewport  viewport.Model
	view      viewState

	state    snapshot
	messages []provider.Summary
	visible  []provider.Summary
	cursor   int
	detail   *provider.Detail

	busy     bool
	fetching bool
	status   string
	kind     statusKind

	autoRefresh bool
	interval    time.Duration
	tickGen     int

	width  int
	height int
}

// New creates the root model. Auto-refresh starts enabled.
func New(cfg Config) Model {
	if cfg.AutoRefresh <= 0 {
		cfg.AutoRefresh = DefaultAutoRefresh
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = providerTag

	si := textinput.New()
	si.Placeholder = "search sender or subject..."
	si.Prompt = "/ "

	vp := viewport.New(80, 20)

	c := newClient(cfg.Manager, cfg.Session, cfg.RequestTimeout)
	return Model{
		client:      c,
		keys:        DefaultKeyMap(),
		logger:      cfg.Logger,
		spinner:     sp,
		search:      si,
		viewport:    vp,
		state:       c.current(),
		messages:    []provider.Summary{},
		visible:     []provider.Summary{},
		status:      "Press g to generate a disposable address.",
		autoRefresh: true,
		interval:    cfg.AutoRefresh,
		width:       80,
		height:      24,
	}
}

// Init starts the auto-refresh chain and loads the inbox of a restored
// session.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{autoRefreshTick(m.interval, m.tickGen)}
	if m.state.Address != "" {
		cmds = append(cmds, m.client.inbox(false))
	}
	return tea.Batch(cmds...)
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = msg.Width - 4
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-8, 3)
		if m.detail != nil {
			m.viewport.SetContent(m.renderDetailBody())
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy && !m.fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generatedMsg:
		m.busy = false
		m.state = msg.State
		if msg.Err != nil {
			m.logger.Warn("generate failed", "error", msg.Err)
			m.setError(msg.Err)
			return m, nil
		}
		m.messages = []provider.Summary{}
		m.cursor = 0
		m.applyFilter()
		if msg.Result.FellBack {
			m.setStatus(statusNotice, fmt.Sprintf("%s refused the request (HTTP 403); using %s instead.",
				m.client.manager.Registry().Label(msg.Result.Refused), m.state.ProviderLabel))
		} else {
			m.setStatus(statusNormal, "New address ready. Waiting for mail...")
		}
		m.fetching = true
		return m, tea.Batch(m.client.inbox(true), m.spinner.Tick)

	case inboxMsg:
		m.fetching = false
		if m.stale(msg.State) {
			return m, nil
		}
		m.state = msg.State
		if errors.Is(msg.Err, session.ErrNoMailbox) {
			return m, nil
		}
		m.messages = msg.Listing.Messages
		m.applyFilter()
		switch {
		case msg.Err != nil:
			m.logger.Warn("inbox fetch failed", "error", msg.Err)
			m.setStatus(statusError, describeError(msg.Err, m.client.manager.Registry()))
			if provider.IsNetwork(msg.Err) {
				m.status += " Showing cached messages."
			}
		case msg.Listing.Fetched && m.kind != statusNotice:
			m.setStatus(statusNormal, fmt.Sprintf("Inbox updated at %s.", time.Now().Format("15:04:05")))
		}
		return m, nil

	case openedMsg:
		m.busy = false
		if m.stale(msg.State) {
			return m, nil
		}
		m.state = msg.State
		if msg.Err != nil {
			m.logger.Warn("open message failed", "error", msg.Err)
			m.setError(msg.Err)
			return m, nil
		}
		m.detail = &msg.Detail
		m.view = detailView
		m.viewport.SetContent(m.renderDetailBody())
		m.viewport.GotoTop()
		return m, nil

	case switchedMsg:
		m.busy = false
		m.state = msg.State
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		m.messages = []provider.Summary{}
		m.cursor = 0
		m.applyFilter()
		m.setStatus(statusNormal, fmt.Sprintf("Switched to %s. Press g for a new address.", m.state.ProviderLabel))
		return m, nil

	case autoRefreshMsg:
		if msg.gen != m.tickGen || !m.autoRefresh {
			return m, nil
		}
		cmds := []tea.Cmd{autoRefreshTick(m.interval, m.tickGen)}
		if m.state.Address != "" && !m.fetching {
			m.fetching = true
			cmds = append(cmds, m.client.inbox(false))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		if m.view == detailView {
			return m.handleDetailKeys(msg)
		}
		return m.handleListKeys(msg)
	}

	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.Reset()
		m.applyFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Generate):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.setStatus(statusNormal, fmt.Sprintf("Generating address on %s...", m.state.ProviderLabel))
		return m, tea.Batch(m.client.generate(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Refresh):
		if m.state.Address == "" {
			m.setError(session.ErrNoMailbox)
			return m, nil
		}
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, tea.Batch(m.client.inbox(true), m.spinner.Tick)

	case key.Matches(msg, m.keys.Provider):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.client.cycleProvider()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.search.Value() != "" {
			m.search.Reset()
			m.applyFilter()
		}
		return m, nil

	case key.Matches(msg, m.keys.AutoRefresh):
		m.autoRefresh = !m.autoRefresh
		m.tickGen++
		if !m.autoRefresh {
			m.setStatus(statusNormal, "Auto-refresh off.")
			return m, nil
		}
		m.setStatus(statusNormal, fmt.Sprintf("Auto-refresh every %s.", m.interval))
		return m, autoRefreshTick(m.interval, m.tickGen)

	case key.Matches(msg, m.keys.Select):
		if m.busy || len(m.visible) == 0 {
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.client.open(m.visible[m.cursor].ID), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.view = listView
		m.detail = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// stale reports whether s was taken before the current mailbox replaced
// the one it describes.
func (m Model) stale(s snapshot) bool {
	return s.Epoch < m.state.Epoch
}

func (m *Model) applyFilter() {
	m.visible = inbox.Filter(m.messages, m.search.Value())
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.kind = kind
	m.status = text
}

func (m *Model) setError(err error) {
	m.setStatus(statusError, describeError(err, m.client.manager.Registry()))
}

// describeError renders err for the status bar.
func describeError(err error, registry *provider.Registry) string {
	var fbErr *session.FallbackError
	switch {
	case errors.Is(err, session.ErrNoMailbox):
		return "No address yet. Press g to generate one."
	case errors.As(err, &fbErr):
		return fmt.Sprintf("%s refused the request and %s failed too: %v",
			registry.Label(fbErr.Primary), registry.Label(fbErr.Fallback), fbErr.FallbackErr)
	}
	switch provider.Kind(err) {
	case "forbidden":
		return "The provider refused the request (HTTP 403)."
	case "network":
		return "Network error while contacting the provider."
	case "malformed":
		return "The provider returned an unexpected response."
	default:
		return err.Error()
	}
}
