package engine

import (
	"context"

	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/workflow"
)

// Action is what the operator asked for at a prompt.
type Action int

// Prompt actions.
const (
	// ActionDecide applies Answer.Decision to the current item.
	ActionDecide Action = iota
	// ActionBack moves to the previous item.
	ActionBack
	// ActionStop ends the session; undecided items stay pending.
	ActionStop
)

// DivergencePrompt is everything a prompter shows for one queue item.
type DivergencePrompt struct {
	Invoice  model.ReconciledInvoice
	Previous *workflow.Decision
	// Problem explains why the last answer for this item was rejected.
	Problem  string
	Position int
	Total    int
}

// Answer is the operator's response to a DivergencePrompt.
type Answer struct {
	Decision workflow.Decision
	Action   Action
}

// Prompter defines the contract for user interaction during divergence
// resolution.
type Prompter interface {
	PromptDivergence(ctx context.Context, prompt DivergencePrompt) (Answer, error)
	ShowCompletion(stats CompletionStats)
}

// CompletionStats summarizes a resolution session.
type CompletionStats struct {
	Total    int
	Resolved int
	Dropped  int
	Pending  int
	Stopped  bool
}
