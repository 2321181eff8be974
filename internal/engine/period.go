package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/conciliador/internal/closing"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/ledger"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/shopspring/decimal"
)

// ErrNoDates is returned when a period cannot be inferred from the sources.
var ErrNoDates = errors.New("sources carry no dates")

// InferPeriod picks the month most dates in the sources fall in. Ties go to
// the earlier month.
func InferPeriod(movement *model.MovementBatch, invoices map[string]model.InvoiceXMLRecord) (model.PeriodID, error) {
	counts := make(map[model.PeriodID]int)
	add := func(t time.Time) {
		if !t.IsZero() {
			counts[model.PeriodOf(t)]++
		}
	}
	if movement != nil {
		for _, rec := range movement.InvoicesByKey {
			add(rec.PaymentDate)
		}
		for _, s := range movement.NoInvoiceSales {
			add(s.Date)
		}
		for _, e := range movement.Expenses {
			add(e.Date)
		}
	}
	for _, rec := range invoices {
		add(rec.EmissionDate)
	}
	if len(counts) == 0 {
		return "", common.NewValidationError(ErrNoDates, "cannot infer period; pass --period")
	}

	periods := make([]model.PeriodID, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		if counts[periods[i]] != counts[periods[j]] {
			return counts[periods[i]] > counts[periods[j]]
		}
		return periods[i] < periods[j]
	})
	return periods[0], nil
}

// Report loads a period's report.
func (e *Engine) Report(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, error) {
	report, err := e.loadExisting(ctx, period)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, common.NewValidationError(closing.ErrNoReport, "period %s has no report", period)
	}
	return report, nil
}

// Divergences lists the invoices of a period still awaiting a decision.
func (e *Engine) Divergences(ctx context.Context, period model.PeriodID) ([]model.ReconciledInvoice, error) {
	report, err := e.Report(ctx, period)
	if err != nil {
		return nil, err
	}
	var pending []model.ReconciledInvoice
	for _, inv := range report.Invoices {
		if inv.IsDivergent() && !inv.Dropped {
			pending = append(pending, inv.Clone())
		}
	}
	return pending, nil
}

// Commissions computes the period's commission lines and marks the
// checklist milestone.
func (e *Engine) Commissions(ctx context.Context, period model.PeriodID) ([]model.CommissionLine, decimal.Decimal, error) {
	report, err := e.Report(ctx, period)
	if err != nil {
		return nil, decimal.Zero, err
	}
	lines, total := e.calculator.Compute(report)
	if err := e.machine.SetFlag(ctx, period, model.FlagCommissionComputed, true); err != nil {
		return nil, decimal.Zero, err
	}
	return lines, total, nil
}

// Checklist runs the pre-close checks and marks the period validated when
// nothing blocks the close.
func (e *Engine) Checklist(ctx context.Context, period model.PeriodID) ([]model.CheckItem, error) {
	items, err := e.machine.PreCloseChecklist(ctx, period)
	if err != nil {
		return nil, err
	}
	if !closing.Blocked(items) {
		if err := e.machine.SetFlag(ctx, period, model.FlagValidated, true); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Snapshot returns the report and its consolidated summary: the frozen one
// for a closed period, a simulated one otherwise. closed tells which.
func (e *Engine) Snapshot(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, *model.ConsolidatedSummary, bool, error) {
	report, err := e.Report(ctx, period)
	if err != nil {
		return nil, nil, false, err
	}
	state, err := e.machine.State(ctx, period)
	if err != nil {
		return nil, nil, false, err
	}
	if state.IsClosed() && state.ConsolidatedSummary != nil {
		return report, state.ConsolidatedSummary, true, nil
	}
	snapshot, err := e.machine.Simulate(ctx, period)
	if err != nil {
		return nil, nil, false, err
	}
	return report, snapshot, false, nil
}

// Summary recomputes the period's totals.
func (e *Engine) Summary(ctx context.Context, period model.PeriodID) (model.Summary, error) {
	report, err := e.Report(ctx, period)
	if err != nil {
		return model.Summary{}, err
	}
	return reconcile.CalculateSummary(report), nil
}

// LedgerView is the read side of a period's ledger.
type LedgerView struct {
	ledger.Totals
	Locked bool
}

// LedgerTotals aggregates the period's ledger.
func (e *Engine) LedgerTotals(ctx context.Context, period model.PeriodID) (LedgerView, error) {
	entries, err := e.ledger.Entries(ctx, period)
	if err != nil {
		return LedgerView{}, fmt.Errorf("failed to read ledger: %w", err)
	}
	locked, err := e.ledger.IsLocked(ctx, period)
	if err != nil {
		return LedgerView{}, err
	}
	return LedgerView{Totals: ledger.Aggregate(entries), Locked: locked}, nil
}
