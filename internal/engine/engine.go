// Package engine runs an import from parsed sources to a saved report: it
// classifies, drives the divergence workflow, merges, persists and keeps the
// ledger and closing checklist in step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/conciliador/internal/closing"
	"github.com/Veraticus/conciliador/internal/commission"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/ledger"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/Veraticus/conciliador/internal/service"
	"github.com/Veraticus/conciliador/internal/workflow"
)

// ErrNothingToImport is returned when neither source was given.
var ErrNothingToImport = errors.New("no movement sheet and no invoices to import")

// Engine orchestrates imports and the period lifecycle around them.
type Engine struct {
	store      service.Storage
	prompter   Prompter
	machine    *closing.Machine
	ledger     *ledger.Service
	calculator *commission.Calculator
	now        func() time.Time
	policy     reconcile.Policy
}

// New creates an engine. prompter may be nil when every import is deferred.
func New(store service.Storage, calculator *commission.Calculator, prompter Prompter, policy reconcile.Policy) *Engine {
	ledgerSvc := ledger.NewService(store)
	return &Engine{
		store:      store,
		prompter:   prompter,
		ledger:     ledgerSvc,
		calculator: calculator,
		machine:    closing.NewMachine(store, store, ledgerSvc, calculator),
		policy:     policy,
		now:        time.Now,
	}
}

// Machine exposes the closing state machine.
func (e *Engine) Machine() *closing.Machine {
	return e.machine
}

// Ledger exposes the ledger service.
func (e *Engine) Ledger() *ledger.Service {
	return e.ledger
}

// ImportRequest carries one batch of parsed sources.
type ImportRequest struct {
	Movement *model.MovementBatch
	Invoices map[string]model.InvoiceXMLRecord
	Period   model.PeriodID
	// Invoices may be empty but non-nil for a month without invoices.
	// Defer skips prompting; divergences are saved as pending.
	Defer  bool
	DryRun bool
}

// ImportResult reports what an import did.
type ImportResult struct {
	Report       *model.MonthlyReport
	Period       model.PeriodID
	Classified   int
	AutoResolved int
	Divergences  int
	Resolved     int
	Dropped      int
	Pending      int
	Stopped      bool
	DryRun       bool
}

// Import classifies the batch, resolves divergences through the prompter
// unless deferred, merges into the period's report and saves it.
func (e *Engine) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.Movement == nil && req.Invoices == nil {
		return nil, common.NewValidationError(ErrNothingToImport, "import")
	}
	if _, err := model.ParsePeriod(string(req.Period)); err != nil {
		return nil, common.NewValidationError(err, "import")
	}
	if err := e.machine.EnsureOpen(ctx, req.Period); err != nil {
		return nil, err
	}

	existing, err := e.loadExisting(ctx, req.Period)
	if err != nil {
		return nil, err
	}

	var movementByKey map[string]model.MovementRecord
	if req.Movement != nil {
		movementByKey = req.Movement.InvoicesByKey
	}

	policy := e.policy
	if existing != nil {
		policy.KnownKey = func(key string) bool { return existing.InvoiceIndex(key) >= 0 }
	}

	classified, err := reconcile.ClassifyAndDetect(movementByKey, req.Invoices, policy)
	if err != nil {
		return nil, err
	}

	common.LogInfo(ctx, "Classified import batch", common.Fields{
		"period":        req.Period,
		"invoices":      len(classified.Invoices),
		"auto_resolved": classified.AutoResolved(),
		"divergences":   len(classified.Queue),
	})

	result := &ImportResult{
		Period:       req.Period,
		Classified:   len(classified.Invoices),
		AutoResolved: classified.AutoResolved(),
		Divergences:  len(classified.Queue),
		DryRun:       req.DryRun,
	}

	invoices := classified.Invoices
	if len(classified.Queue) > 0 && !req.Defer {
		if e.prompter == nil {
			return nil, common.NewValidationError(nil, "%d divergence(s) need a decision but no prompter is available; use --defer", len(classified.Queue))
		}
		wf, stats, err := e.runWorkflow(ctx, workflow.New(invoices))
		if err != nil {
			return nil, err
		}
		invoices = wf.Invoices
		result.Resolved, result.Dropped, result.Stopped = stats.Resolved, stats.Dropped, stats.Stopped
		if ctx.Err() != nil {
			// Interrupted: keep the decisions made so far.
			ctx = context.WithoutCancel(ctx)
		}
	}

	batch := reconcile.Batch{
		Invoices:            invoices,
		ResolvedDivergences: result.Resolved,
	}
	if req.Movement != nil {
		batch.NoInvoiceSales = req.Movement.NoInvoiceSales
		batch.Expenses = req.Movement.Expenses
	}

	report := reconcile.MergeReport(existing, req.Period, batch, e.now())
	result.Report = report
	result.Pending = report.DivergentCount()

	if req.DryRun {
		slog.Info("Dry run: report not saved", "period", req.Period)
		return result, nil
	}

	if err := e.persist(ctx, report); err != nil {
		return nil, err
	}

	if req.Movement != nil {
		if err := e.machine.SetFlag(ctx, req.Period, model.FlagMovementImported, true); err != nil {
			return nil, err
		}
	}
	// An empty, non-nil invoice set still records the XML step.
	if req.Invoices != nil {
		if err := e.machine.SetFlag(ctx, req.Period, model.FlagInvoicesImported, true); err != nil {
			return nil, err
		}
	}
	if err := e.machine.SetFlag(ctx, req.Period, model.FlagReconciled, true); err != nil {
		return nil, err
	}
	if err := e.machine.SetFlag(ctx, req.Period, model.FlagDivergencesResolved, result.Pending == 0); err != nil {
		return nil, err
	}

	return result, nil
}

// ResolvePending runs the workflow over the divergences saved in a period's
// report, typically after an import with Defer.
func (e *Engine) ResolvePending(ctx context.Context, period model.PeriodID) (*ImportResult, error) {
	if e.prompter == nil {
		return nil, common.NewValidationError(nil, "no prompter available")
	}
	if err := e.machine.EnsureOpen(ctx, period); err != nil {
		return nil, err
	}

	existing, err := e.loadExisting(ctx, period)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, common.NewValidationError(closing.ErrNoReport, "period %s has no report", period)
	}

	wf := workflow.New(existing.Invoices)
	result := &ImportResult{Period: period, Divergences: wf.Len()}
	if wf.Len() == 0 {
		result.Report = existing
		return result, nil
	}

	wf, stats, err := e.runWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}
	result.Resolved, result.Dropped, result.Stopped = stats.Resolved, stats.Dropped, stats.Stopped
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	report := reconcile.MergeReport(existing, period, reconcile.Batch{
		Invoices:            wf.Invoices,
		ResolvedDivergences: stats.Resolved,
	}, e.now())
	result.Report = report
	result.Pending = report.DivergentCount()

	if err := e.persist(ctx, report); err != nil {
		return nil, err
	}
	if err := e.machine.SetFlag(ctx, period, model.FlagDivergencesResolved, result.Pending == 0); err != nil {
		return nil, err
	}
	return result, nil
}

// runWorkflow prompts until the queue is finished or the operator stops.
// Rejected answers are shown again with the reason. A cancelled context ends
// the session like a stop.
func (e *Engine) runWorkflow(ctx context.Context, wf workflow.Workflow) (workflow.Workflow, CompletionStats, error) {
	problem := ""
	stopped := false

	for !wf.Done {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		item, inv, _ := wf.CurrentItem()
		prompt := DivergencePrompt{
			Invoice:  inv,
			Position: item.Position,
			Total:    wf.Len(),
			Problem:  problem,
		}
		if prev, ok := wf.DecisionAt(item.Position); ok {
			prompt.Previous = &prev
		}

		answer, err := e.prompter.PromptDivergence(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				stopped = true
				break
			}
			return wf, CompletionStats{}, fmt.Errorf("prompt failed: %w", err)
		}

		problem = ""
		switch answer.Action {
		case ActionBack:
			wf = wf.GoBack()
		case ActionStop:
			stopped = true
		default:
			next, resolveErr := wf.Resolve(answer.Decision)
			if resolveErr != nil {
				if !errors.Is(resolveErr, common.ErrValidation) {
					return wf, CompletionStats{}, resolveErr
				}
				common.LogDebug(ctx, "Decision rejected", common.Fields{"key": inv.Key, "error": resolveErr})
				problem = resolveErr.Error()
				continue
			}
			wf = next
		}
		if stopped {
			break
		}
	}

	stats := CompletionStats{Total: wf.Len(), Stopped: stopped}
	for pos, item := range wf.Queue {
		if _, ok := wf.DecisionAt(pos); !ok {
			stats.Pending++
			continue
		}
		if wf.Invoices[item.InvoiceIndex].Dropped {
			stats.Dropped++
		}
		stats.Resolved++
	}
	e.prompter.ShowCompletion(stats)

	slog.Info("Divergence session finished",
		"resolved", stats.Resolved,
		"dropped", stats.Dropped,
		"pending", stats.Pending,
		"stopped", stopped)
	return wf, stats, nil
}

func (e *Engine) loadExisting(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, error) {
	report, err := e.store.LoadReport(ctx, period)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return report, nil
}

// persist saves the report and re-derives the period's ledger.
func (e *Engine) persist(ctx context.Context, report *model.MonthlyReport) error {
	if err := e.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if err := e.ledger.Ingest(ctx, report); err != nil {
		return fmt.Errorf("failed to ingest ledger: %w", err)
	}
	return nil
}
