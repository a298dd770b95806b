package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the inbox view.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	Select key.Binding
	Back   key.Binding
	Quit   key.Binding

	Generate    key.Binding
	Refresh     key.Binding
	Provider    key.Binding
	Search      key.Binding
	AutoRefresh key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Generate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "new address"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Provider: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "switch provider"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		AutoRefresh: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto-refresh"),
		),
	}
}

// listHelp returns the bindings shown in the list view footer.
func (k KeyMap) listHelp() []key.Binding {
	return []key.Binding{k.Generate, k.Refresh, k.Provider, k.Search, k.Select, k.AutoRefresh, k.Quit}
}

func (k KeyMap) detailHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Back, k.Quit}
}
