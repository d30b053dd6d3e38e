// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Help shows the help view.
	Help key.Binding

	// Back returns to the previous view.
	Back key.Binding

	// SwitchView toggles between the jobs and timeline views.
	SwitchView key.Binding

	// Up navigates up in a list.
	Up key.Binding

	// Down navigates down in a list.
	Down key.Binding

	// PrevDate moves the timeline to the previous date with events.
	PrevDate key.Binding

	// NextDate moves the timeline to the next date with events.
	NextDate key.Binding

	// CancelJob cancels the selected ingestion job.
	CancelJob key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		SwitchView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "jobs/timeline"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PrevDate: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous date"),
		),
		NextDate: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next date"),
		),
		CancelJob: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cancel job"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchView, k.Help, k.Quit}
}

// JobsHelp returns keybindings for the jobs view.
func (k *KeyMap) JobsHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.CancelJob, k.SwitchView, k.Quit}
}

// TimelineHelp returns keybindings for the timeline view.
func (k *KeyMap) TimelineHelp() []key.Binding {
	return []key.Binding{k.PrevDate, k.NextDate, k.SwitchView, k.Quit}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.CancelJob},
		{k.PrevDate, k.NextDate, k.SwitchView},
		{k.Help, k.Back, k.Quit},
	}
}
