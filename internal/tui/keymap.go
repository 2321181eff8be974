package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	MovementSeller  key.Binding
	XMLSeller       key.Binding
	CorrectedSeller key.Binding
	MovementDate    key.Binding
	XMLDate         key.Binding
	Ignore          key.Binding
	Assign          key.Binding
	Back            key.Binding
	Stop            key.Binding
	Confirm         key.Binding
	Cancel          key.Binding
	Help            key.Binding
	ForceQuit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		MovementSeller: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "movement seller"),
		),
		XMLSeller: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "XML seller"),
		),
		CorrectedSeller: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "corrected seller"),
		),
		MovementDate: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "movement date"),
		),
		XMLDate: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "XML date"),
		),
		Ignore: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "ignore"),
		),
		Assign: key.NewBinding(
			key.WithKeys("="),
			key.WithHelp("=", "assign seller"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "left"),
			key.WithHelp("←/b", "back"),
		),
		Stop: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "stop and save"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "abort"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MovementSeller, k.XMLSeller, k.Assign, k.Ignore, k.Back, k.Stop, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.MovementSeller, k.XMLSeller, k.CorrectedSeller},
		{k.MovementDate, k.XMLDate},
		{k.Assign, k.Ignore},
		{k.Back, k.Stop, k.ForceQuit},
	}
}
