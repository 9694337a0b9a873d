package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding

	// Views
	Menu     key.Binding
	Activity key.Binding
	Issues   key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Actions
	Confirm     key.Binding
	Reveal      key.Binding
	OpenFolder  key.Binding
	TogglePause key.Binding
	Toggle      key.Binding
	NextButton  key.Binding
	OpenURL     key.Binding
	Copy        key.Binding
	Unlink      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close"),
		),

		Menu: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Menu"),
		),
		Activity: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Recent changes"),
		),
		Issues: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Sync issues"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Select / open"),
		),
		Reveal: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Show in folder"),
		),
		OpenFolder: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Open sync folder"),
		),
		TogglePause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Pause / resume"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle checkbox"),
		),
		NextButton: key.NewBinding(
			key.WithKeys("tab", "right", "left", "shift+tab"),
			key.WithHelp("tab", "Next button"),
		),
		OpenURL: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "Open link"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "Copy"),
		),
		Unlink: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Unlink and quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Menu, k.Activity, k.Issues, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Menu, k.Activity, k.Issues, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Confirm, k.Reveal, k.OpenFolder, k.TogglePause},
		{k.Toggle, k.NextButton, k.OpenURL, k.Copy, k.Unlink},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
