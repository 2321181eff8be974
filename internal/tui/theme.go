package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	BorderedBox lipgloss.Style
	Critical    lipgloss.Style
	Warning     lipgloss.Style
	Success     lipgloss.Style
	Muted       lipgloss.Style
	Input       lipgloss.Style
}

// Default is the default theme.
var Default = Theme{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")).
		Background(lipgloss.Color("#3b5bdb")).
		Padding(0, 1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	BorderedBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(1, 2),
	Critical: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ef4444")),
	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f59e0b")),
	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10b981")),
	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")),
	Input: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a78bfa")),
}
