package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/Veraticus/conciliador/internal/workflow"
)

// ErrScriptExhausted is returned by MockPrompter when it runs out of answers.
var ErrScriptExhausted = errors.New("mock prompter has no more answers")

// MockPrompter is a test implementation of the Prompter interface. It replays
// a fixed script of answers, or a default decision once the script runs out.
type MockPrompter struct {
	fallback    *workflow.Decision
	script      []Answer
	prompts     []DivergencePrompt
	completions []CompletionStats
	mu          sync.Mutex
}

// NewMockPrompter creates a prompter that replays the given answers.
func NewMockPrompter(script ...Answer) *MockPrompter {
	return &MockPrompter{script: script}
}

// NewAutoPrompter creates a prompter that answers every prompt with d.
func NewAutoPrompter(d workflow.Decision) *MockPrompter {
	return &MockPrompter{fallback: &d}
}

// Decide is a convenience answer applying a decision typed as input.
func Decide(input string) Answer {
	d, err := workflow.ParseDecision(input)
	if err != nil {
		panic(err)
	}
	return Answer{Action: ActionDecide, Decision: d}
}

// PromptDivergence implements Prompter.
func (m *MockPrompter) PromptDivergence(_ context.Context, prompt DivergencePrompt) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	if m.fallback != nil {
		return Answer{Action: ActionDecide, Decision: *m.fallback}, nil
	}
	return Answer{}, ErrScriptExhausted
}

// ShowCompletion implements Prompter.
func (m *MockPrompter) ShowCompletion(stats CompletionStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, stats)
}

// Prompts returns a copy of every prompt shown.
func (m *MockPrompter) Prompts() []DivergencePrompt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DivergencePrompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Completions returns every completion summary shown.
func (m *MockPrompter) Completions() []CompletionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CompletionStats, len(m.completions))
	copy(out, m.completions)
	return out
}
