package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/conciliador/internal/cli"
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.stats != nil {
		return m.completionView()
	}
	if m.prompt == nil {
		return m.theme.Muted.Render("Waiting for the next divergence...")
	}

	var sections []string
	sections = append(sections,
		m.theme.Title.Render(fmt.Sprintf("Divergence %d of %d", m.prompt.Position+1, m.prompt.Total)),
		m.progressView(),
		m.theme.BorderedBox.Render(cli.FormatDivergence(*m.prompt)),
	)

	if m.prompt.Problem != "" {
		sections = append(sections, m.theme.Critical.Render(m.prompt.Problem))
	}
	if m.notice != "" {
		sections = append(sections, m.theme.Warning.Render(m.notice))
	}

	if m.assigning {
		sections = append(sections, m.theme.Input.Render(m.input.View()))
	} else {
		sections = append(sections, cli.Options(m.prompt.Invoice))
	}

	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) progressView() string {
	const width = 30
	if m.prompt.Total == 0 {
		return ""
	}
	filled := width * m.prompt.Position / m.prompt.Total
	bar := m.theme.Success.Render(strings.Repeat("█", filled)) +
		m.theme.Muted.Render(strings.Repeat("░", width-filled))
	return bar + m.theme.Subtitle.Render(fmt.Sprintf(" %d/%d", m.prompt.Position, m.prompt.Total))
}

func (m Model) completionView() string {
	title := "Resolution complete"
	if m.stats.Stopped {
		title = "Resolution stopped"
	}

	body := fmt.Sprintf("Divergences: %d\nResolved:    %d\nIgnored:     %d\nPending:     %d",
		m.stats.Total, m.stats.Resolved, m.stats.Dropped, m.stats.Pending)
	if m.stats.Pending > 0 {
		body += "\n\n" + m.theme.Warning.Render("Pending divergences block the close.")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(title),
		m.theme.BorderedBox.Render(body),
		m.theme.Muted.Render("Press any key to exit."),
	)
}
