package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/conciliador/internal/model"
)

// MockWriter is a mock implementation of service.ReportPublisher for testing.
type MockWriter struct {
	PublishFunc  func(ctx context.Context, report *model.MonthlyReport, snapshot *model.ConsolidatedSummary) (string, error)
	LastReport   *model.MonthlyReport
	LastSnapshot *model.ConsolidatedSummary
	Calls        []PublishCall
	mu           sync.Mutex
}

// PublishCall represents a single call to Publish.
type PublishCall struct {
	Error  error
	Period model.PeriodID
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Publish records the call and delegates to PublishFunc when set.
func (m *MockWriter) Publish(ctx context.Context, report *model.MonthlyReport, snapshot *model.ConsolidatedSummary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastReport = report
	m.LastSnapshot = snapshot

	id := "mock-spreadsheet"
	var err error
	if m.PublishFunc != nil {
		id, err = m.PublishFunc(ctx, report, snapshot)
	}

	m.Calls = append(m.Calls, PublishCall{Period: report.Period, Error: err})
	return id, err
}

// CallCount returns how many times Publish ran.
func (m *MockWriter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// SetPublishError configures the mock to fail every call.
func (m *MockWriter) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishFunc = func(context.Context, *model.MonthlyReport, *model.ConsolidatedSummary) (string, error) {
		return "", err
	}
}
