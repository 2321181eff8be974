package tui

import tea "github.com/charmbracelet/bubbletea"

// Config holds TUI configuration.
type Config struct {
	Theme          Theme
	ProgramOptions []tea.ProgramOption
	Width          int
	Height         int
}

// Option configures the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:  Default,
		Width:  100,
		Height: 30,
	}
}

// WithTheme sets the TUI theme.
func WithTheme(theme Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithProgramOptions passes extra options to the bubbletea program, such as
// tea.WithInput and tea.WithOutput.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(c *Config) {
		c.ProgramOptions = append(c.ProgramOptions, opts...)
	}
}
