package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/conciliador/internal/engine"
)

// Run starts the resolver, hands it to work and waits for the operator to
// leave. When work ends without a completion summary, for example because
// there was nothing to resolve, the program is closed right away.
func Run(ctx context.Context, work func(context.Context, engine.Prompter) error, opts ...Option) error {
	p := New(ctx, opts...)

	startErr := make(chan error, 1)
	go func() {
		startErr <- p.Start()
	}()

	workErr := work(ctx, p)
	if workErr != nil || !p.showedCompletion() {
		p.Quit()
	}

	err := <-startErr
	if workErr != nil {
		return workErr
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Interrupted: the engine already saved what it had.
		return nil
	}
	return err
}
