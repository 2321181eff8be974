package reconcile

import (
	"slices"
	"time"

	"github.com/Veraticus/conciliador/internal/model"
)

// Batch is the reconciled output of one import, ready to merge.
type Batch struct {
	Invoices            []model.ReconciledInvoice
	NoInvoiceSales      []model.NoInvoiceSale
	Expenses            []model.ExpenseEntry
	ResolvedDivergences int
}

// MergeReport folds a batch into the existing report for a period and returns
// a new report. Keys present in both are replaced in place, keys only in the
// existing report are retained and new keys are appended in batch order.
// Dropped batch records are left out and remove their key from the existing
// report. Sales and expenses are appended. Totals are recomputed from scratch.
// existing may be nil for a first import.
func MergeReport(existing *model.MonthlyReport, period model.PeriodID, batch Batch, now time.Time) *model.MonthlyReport {
	merged := model.NewMonthlyReport(period)

	if existing != nil {
		merged.Invoices = make([]model.ReconciledInvoice, 0, len(existing.Invoices)+len(batch.Invoices))
		for _, inv := range existing.Invoices {
			merged.Invoices = append(merged.Invoices, inv.Clone())
		}
		merged.NoInvoiceSales = slices.Clone(existing.NoInvoiceSales)
		merged.Expenses = slices.Clone(existing.Expenses)
		merged.ResolvedDivergences = existing.ResolvedDivergences
	}

	index := make(map[string]int, len(merged.Invoices))
	for i := range merged.Invoices {
		index[merged.Invoices[i].Key] = i
	}

	var dropped map[string]bool
	for _, inv := range batch.Invoices {
		if inv.Dropped {
			if dropped == nil {
				dropped = make(map[string]bool)
			}
			dropped[inv.Key] = true
			continue
		}
		if i, ok := index[inv.Key]; ok {
			merged.Invoices[i] = inv.Clone()
			continue
		}
		index[inv.Key] = len(merged.Invoices)
		merged.Invoices = append(merged.Invoices, inv.Clone())
	}

	if len(dropped) > 0 {
		merged.Invoices = slices.DeleteFunc(merged.Invoices, func(inv model.ReconciledInvoice) bool {
			return dropped[inv.Key]
		})
	}

	merged.NoInvoiceSales = append(merged.NoInvoiceSales, batch.NoInvoiceSales...)
	merged.Expenses = append(merged.Expenses, batch.Expenses...)
	merged.ResolvedDivergences += batch.ResolvedDivergences
	merged.TotalsByMethod = ComputeTotals(merged)
	merged.UpdatedAt = now

	return merged
}
