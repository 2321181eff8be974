package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/workflow"
)

// Model holds the resolver state. It shows at most one divergence at a time
// and hands every answer to the waiting engine through answers.
type Model struct {
	theme     Theme
	answers   chan<- answerResult
	prompt    *engine.DivergencePrompt
	stats     *engine.CompletionStats
	notice    string
	keys      KeyMap
	help      help.Model
	input     textinput.Model
	width     int
	height    int
	assigning bool
	quitting  bool
}

func newModel(cfg Config, answers chan<- answerResult) Model {
	input := textinput.New()
	input.Prompt = "Seller code: "
	input.Placeholder = "V07"
	input.CharLimit = 16

	return Model{
		theme:   cfg.Theme,
		answers: answers,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		input:   input,
		width:   cfg.Width,
		height:  cfg.Height,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case promptMsg:
		prompt := msg.prompt
		m.prompt = &prompt
		m.notice = ""
		m.assigning = false
		m.input.Blur()
		m.input.Reset()
		return m, nil

	case completionMsg:
		stats := msg.stats
		m.stats = &stats
		m.prompt = nil
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		if m.prompt != nil {
			m.answers <- answerResult{err: ErrAborted}
			m.prompt = nil
		}
		m.quitting = true
		return m, tea.Quit
	}

	if m.stats != nil {
		m.quitting = true
		return m, tea.Quit
	}
	if m.prompt == nil {
		return m, nil
	}

	if m.assigning {
		return m.handleAssignKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.MovementSeller):
		return m.decide(workflow.UseMovementSeller)
	case key.Matches(msg, m.keys.XMLSeller):
		return m.decide(workflow.UseXMLSeller)
	case key.Matches(msg, m.keys.CorrectedSeller):
		return m.decide(workflow.UseCorrectedSeller)
	case key.Matches(msg, m.keys.MovementDate):
		return m.decide(workflow.UseMovementDate)
	case key.Matches(msg, m.keys.XMLDate):
		return m.decide(workflow.UseXMLDate)
	case key.Matches(msg, m.keys.Ignore):
		return m.decide(workflow.Ignore)
	case key.Matches(msg, m.keys.Back):
		return m.submit(engine.Answer{Action: engine.ActionBack})
	case key.Matches(msg, m.keys.Stop):
		return m.submit(engine.Answer{Action: engine.ActionStop})
	case key.Matches(msg, m.keys.Assign):
		m.assigning = true
		m.notice = ""
		m.input.Reset()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m Model) handleAssignKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.assigning = false
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		// "5=CODE" picks a date and a seller; anything else is a seller code.
		raw := m.input.Value()
		if !strings.Contains(raw, "=") {
			raw = "=" + raw
		}
		d, err := workflow.ParseDecision(raw)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.assigning = false
		m.input.Blur()
		return m.submit(engine.Answer{Action: engine.ActionDecide, Decision: d})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) decide(code workflow.DecisionCode) (tea.Model, tea.Cmd) {
	return m.submit(engine.Answer{Action: engine.ActionDecide, Decision: workflow.Decision{Code: code}})
}

// submit hands the answer to the engine and waits for the next prompt.
func (m Model) submit(answer engine.Answer) (tea.Model, tea.Cmd) {
	m.answers <- answerResult{answer: answer}
	m.prompt = nil
	return m, nil
}
