// Package closing implements the monthly closing workflow: the checklist,
// the close and reopen transitions and the consolidated snapshot.
package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/conciliador/internal/commission"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/ledger"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/Veraticus/conciliador/internal/service"
)

// Closing errors. Each is wrapped in a common.ValidationError.
var (
	ErrPeriodClosed       = errors.New("period is closed")
	ErrDivergencesPending = errors.New("divergences pending")
	ErrNoReport           = errors.New("period has no report")
	ErrUnknownFlag        = errors.New("unknown checklist flag")
)

// Machine drives the closing state of every period.
type Machine struct {
	reports    service.ReportStore
	states     service.ClosingStore
	ledger     *ledger.Service
	calculator *commission.Calculator
	now        func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a closing state machine.
func NewMachine(reports service.ReportStore, states service.ClosingStore, ledgerSvc *ledger.Service, calculator *commission.Calculator, opts ...Option) *Machine {
	m := &Machine{
		reports:    reports,
		states:     states,
		ledger:     ledgerSvc,
		calculator: calculator,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the closing state of a period. A period never written to is
// reported as a fresh IN_PROGRESS state.
func (m *Machine) State(ctx context.Context, period model.PeriodID) (*model.ClosingState, error) {
	state, err := m.states.LoadClosingState(ctx, period)
	if errors.Is(err, common.ErrNotFound) {
		return model.NewClosingState(period), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load closing state: %w", err)
	}
	return state, nil
}

// EnsureOpen fails when the period is closed. Every report mutation passes
// through it.
func (m *Machine) EnsureOpen(ctx context.Context, period model.PeriodID) error {
	state, err := m.State(ctx, period)
	if err != nil {
		return err
	}
	if state.IsClosed() {
		return common.NewValidationError(ErrPeriodClosed, "period %s is closed; reopen it before changing data", period)
	}
	return nil
}

// SetFlag records a checklist flag. Updates on a closed period are ignored
// and logged. Turning a flag on appends a milestone to the timeline.
func (m *Machine) SetFlag(ctx context.Context, period model.PeriodID, flag model.ChecklistFlag, value bool) error {
	if !model.IsValidFlag(flag) {
		return common.NewValidationError(ErrUnknownFlag, "unknown checklist flag %q", flag)
	}

	state, err := m.State(ctx, period)
	if err != nil {
		return err
	}
	if state.IsClosed() {
		slog.Warn("Ignoring checklist update on closed period",
			"period", period,
			"flag", flag,
			"value", value)
		return nil
	}

	previous := state.Checklist[flag]
	if err := m.states.SetChecklistFlag(ctx, period, flag, value); err != nil {
		return fmt.Errorf("failed to set checklist flag: %w", err)
	}

	if !previous && value {
		event := m.event(model.EventMilestone, fmt.Sprintf("%s completed", flag))
		event.Flag = flag
		if err := m.states.AppendTimelineEvent(ctx, period, event); err != nil {
			return fmt.Errorf("failed to record milestone: %w", err)
		}
	}
	return nil
}

// Simulate previews the snapshot a close would produce without changing any
// state.
func (m *Machine) Simulate(ctx context.Context, period model.PeriodID) (*model.ConsolidatedSummary, error) {
	report, err := m.loadReport(ctx, period)
	if err != nil {
		return nil, err
	}
	return m.snapshot(report), nil
}

// Close freezes the period. It requires zero pending divergences, computes a
// fresh snapshot, locks the ledger and then persists the CLOSED state. When
// the final write fails the ledger is unlocked again and the period stays
// open.
func (m *Machine) Close(ctx context.Context, period model.PeriodID) (*model.ClosingState, error) {
	state, err := m.State(ctx, period)
	if err != nil {
		return nil, err
	}
	if state.IsClosed() {
		return nil, common.NewValidationError(ErrPeriodClosed, "period %s is already closed", period)
	}

	report, err := m.loadReport(ctx, period)
	if err != nil {
		return nil, err
	}
	if n := report.DivergentCount(); n > 0 {
		return nil, common.NewValidationError(ErrDivergencesPending,
			"cannot close %s: %d divergence(s) still pending", period, n)
	}

	snapshot := m.snapshot(report)

	if err := m.ledger.Lock(ctx, period); err != nil {
		return nil, err
	}

	next := cloneState(state)
	next.Status = model.ClosingClosed
	next.ConsolidatedSummary = snapshot
	next.UpdatedAt = m.now()
	next.Timeline = append(next.Timeline, m.event(model.EventClose,
		fmt.Sprintf("closed with net total %s and commissions %s",
			snapshot.Summary.NetTotal.StringFixed(2), snapshot.CommissionTotal.StringFixed(2))))

	if err := m.states.SaveClosingState(ctx, next); err != nil {
		if unlockErr := m.ledger.Unlock(ctx, period); unlockErr != nil {
			common.LogError(ctx, unlockErr, "failed to unlock ledger after close failure", common.Fields{"period": period})
		}
		return nil, fmt.Errorf("failed to save closing state: %w", err)
	}

	slog.Info("Closed period",
		"period", period,
		"invoices", snapshot.Summary.InvoiceCount,
		"net_total", snapshot.Summary.NetTotal.StringFixed(2))
	return next, nil
}

// Reopen returns the period to IN_PROGRESS, unlocks the ledger and discards
// the snapshot. It never fails on business grounds. When the state write fails
// a closed period keeps its ledger locked.
func (m *Machine) Reopen(ctx context.Context, period model.PeriodID) (*model.ClosingState, error) {
	state, err := m.State(ctx, period)
	if err != nil {
		return nil, err
	}

	if err := m.ledger.Unlock(ctx, period); err != nil {
		return nil, err
	}

	next := cloneState(state)
	next.Status = model.ClosingInProgress
	next.ConsolidatedSummary = nil
	next.UpdatedAt = m.now()
	next.Timeline = append(next.Timeline, m.event(model.EventReopen, "period reopened"))

	if err := m.states.SaveClosingState(ctx, next); err != nil {
		if state.IsClosed() {
			if lockErr := m.ledger.Lock(ctx, period); lockErr != nil {
				common.LogError(ctx, lockErr, "failed to relock ledger after reopen failure", common.Fields{"period": period})
			}
		}
		return nil, fmt.Errorf("failed to save closing state: %w", err)
	}

	slog.Info("Reopened period", "period", period)
	return next, nil
}

// PreCloseChecklist reports what stands between the period and a close.
func (m *Machine) PreCloseChecklist(ctx context.Context, period model.PeriodID) ([]model.CheckItem, error) {
	state, err := m.State(ctx, period)
	if err != nil {
		return nil, err
	}

	items := make([]model.CheckItem, 0, 5)
	if state.IsClosed() {
		items = append(items, model.CheckItem{Status: model.CheckOK, Message: fmt.Sprintf("Period %s is closed", period)})
	}

	if state.Checklist[model.FlagMovementImported] {
		items = append(items, model.CheckItem{Status: model.CheckOK, Message: "Movement spreadsheet imported"})
	} else {
		items = append(items, model.CheckItem{Status: model.CheckBlocked, Message: "Movement spreadsheet not imported"})
	}

	if state.Checklist[model.FlagInvoicesImported] {
		items = append(items, model.CheckItem{Status: model.CheckOK, Message: "Invoice XMLs imported"})
	} else {
		items = append(items, model.CheckItem{Status: model.CheckBlocked, Message: "Invoice XMLs not imported"})
	}

	report, err := m.reports.LoadReport(ctx, period)
	switch {
	case errors.Is(err, common.ErrNotFound):
		items = append(items, model.CheckItem{Status: model.CheckBlocked, Message: "No reconciled report"})
	case err != nil:
		return nil, fmt.Errorf("failed to load report: %w", err)
	default:
		if n := report.DivergentCount(); n > 0 {
			items = append(items, model.CheckItem{Status: model.CheckBlocked, Message: fmt.Sprintf("%d divergence(s) pending", n)})
		} else {
			items = append(items, model.CheckItem{Status: model.CheckOK, Message: "All divergences resolved"})
		}
	}

	if state.Checklist[model.FlagCommissionComputed] {
		items = append(items, model.CheckItem{Status: model.CheckOK, Message: "Commissions computed"})
	} else {
		items = append(items, model.CheckItem{Status: model.CheckWarning, Message: "Commissions not computed yet"})
	}

	return items, nil
}

// Blocked reports whether any checklist item blocks the close.
func Blocked(items []model.CheckItem) bool {
	return slices.ContainsFunc(items, func(i model.CheckItem) bool { return i.Status == model.CheckBlocked })
}

func (m *Machine) loadReport(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, error) {
	report, err := m.reports.LoadReport(ctx, period)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewValidationError(ErrNoReport, "period %s has no reconciled report", period)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return report, nil
}

func (m *Machine) snapshot(report *model.MonthlyReport) *model.ConsolidatedSummary {
	lines, total := m.calculator.Compute(report)
	return &model.ConsolidatedSummary{
		GeneratedAt:     m.now(),
		Summary:         reconcile.CalculateSummary(report),
		Commissions:     lines,
		CommissionTotal: total,
	}
}

func (m *Machine) event(kind model.TimelineEventKind, message string) model.TimelineEvent {
	return model.TimelineEvent{
		ID:      uuid.NewString(),
		At:      m.now(),
		Kind:    kind,
		Message: message,
	}
}

func cloneState(s *model.ClosingState) *model.ClosingState {
	c := *s
	c.Checklist = maps.Clone(s.Checklist)
	c.Timeline = slices.Clone(s.Timeline)
	return &c
}
