package tui

import "github.com/Veraticus/conciliador/internal/engine"

// promptMsg asks the operator to resolve one divergence.
type promptMsg struct {
	prompt engine.DivergencePrompt
}

// completionMsg shows the session summary.
type completionMsg struct {
	stats engine.CompletionStats
}

// answerResult carries the operator's answer back to the engine.
type answerResult struct {
	err    error
	answer engine.Answer
}
