// Package tui is a full-screen divergence resolver built on bubbletea. It
// implements engine.Prompter by forwarding each prompt to the running program
// and waiting for the operator's key press.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/conciliador/internal/engine"
)

// TUI errors.
var (
	// ErrAborted is returned to the engine when the operator aborts with ctrl+c.
	ErrAborted = errors.New("resolution aborted")
	// ErrClosed is returned when the program exited before answering.
	ErrClosed = errors.New("resolver closed")
)

// Prompter implements engine.Prompter with a TUI.
type Prompter struct {
	program   *tea.Program
	answers   chan answerResult
	done      chan struct{}
	completed bool
	mu        sync.Mutex
}

var _ engine.Prompter = (*Prompter)(nil)

// New creates a TUI prompter. Call Start to run it.
func New(ctx context.Context, opts ...Option) *Prompter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Prompter{
		answers: make(chan answerResult, 1),
		done:    make(chan struct{}),
	}

	programOpts := append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	}, cfg.ProgramOptions...)
	p.program = tea.NewProgram(newModel(cfg, p.answers), programOpts...)
	return p
}

// Start runs the program until the operator leaves. It blocks.
func (p *Prompter) Start() error {
	defer close(p.done)
	if _, err := p.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// PromptDivergence implements engine.Prompter.
func (p *Prompter) PromptDivergence(ctx context.Context, prompt engine.DivergencePrompt) (engine.Answer, error) {
	p.program.Send(promptMsg{prompt: prompt})

	select {
	case res := <-p.answers:
		return res.answer, res.err
	case <-p.done:
		return engine.Answer{}, ErrClosed
	case <-ctx.Done():
		return engine.Answer{}, ctx.Err()
	}
}

// ShowCompletion implements engine.Prompter. The summary stays up until the
// operator presses a key.
func (p *Prompter) ShowCompletion(stats engine.CompletionStats) {
	p.mu.Lock()
	p.completed = true
	p.mu.Unlock()
	p.program.Send(completionMsg{stats: stats})
}

// Quit closes the program without waiting for the operator.
func (p *Prompter) Quit() {
	p.program.Quit()
}

func (p *Prompter) showedCompletion() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}
