package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the control panel
type KeyMap struct {
	Up   key.Binding
	Down key.Binding
	Home key.Binding
	End  key.Binding

	// Filter criteria
	Search         key.Binding
	SearchClear    key.Binding
	SearchConfirm  key.Binding
	ToggleServices key.Binding
	ToggleDrivers  key.Binding

	// Lifecycle commands on the selected unit
	Start         key.Binding
	Stop          key.Binding
	PauseContinue key.Binding

	Refresh     key.Binding
	ImageFolder key.Binding
	Process     key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	SearchClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	SearchConfirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "done"),
	),
	ToggleServices: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "services"),
	),
	ToggleDrivers: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "drivers"),
	),
	Start: key.NewBinding(
		key.WithKeys("S"),
		key.WithHelp("S", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	PauseContinue: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/continue"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	ImageFolder: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "image folder"),
	),
	Process: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "process"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Search, k.ToggleServices, k.ToggleDrivers,
		k.Start, k.Stop, k.PauseContinue, k.Refresh, k.Quit,
	}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Home, k.End},
		{k.Search, k.ToggleServices, k.ToggleDrivers},
		{k.Start, k.Stop, k.PauseContinue},
		{k.Refresh, k.ImageFolder, k.Process, k.Quit},
	}
}

// searchHelp lists the bindings active while the search line has focus
func (k KeyMap) searchHelp() []key.Binding {
	return []key.Binding{k.SearchConfirm, k.SearchClear}
}
