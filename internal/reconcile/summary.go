package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/conciliador/internal/model"
)

// Counts reports whether an invoice participates in totals. Dropped and
// cancelled invoices are fiscally void.
func Counts(inv *model.ReconciledInvoice) bool {
	return !inv.Dropped && !inv.Cancelled
}

// ComputeTotals sums every contribution of the report by payment method.
func ComputeTotals(report *model.MonthlyReport) map[model.PaymentMethod]decimal.Decimal {
	totals := make(map[model.PaymentMethod]decimal.Decimal)
	add := func(method model.PaymentMethod, amount decimal.Decimal) {
		if method == "" {
			method = model.PaymentOther
		}
		totals[method] = totals[method].Add(amount)
	}

	for i := range report.Invoices {
		inv := &report.Invoices[i]
		if !Counts(inv) {
			continue
		}
		add(inv.PaymentMethod, inv.Amount)
	}
	for _, sale := range report.NoInvoiceSales {
		add(sale.PaymentMethod, sale.Amount)
	}
	for _, exp := range report.Expenses {
		add(exp.PaymentMethod, exp.Contribution())
	}

	return totals
}

// CalculateSummary recomputes every figure of a report without relying on
// cached totals.
func CalculateSummary(report *model.MonthlyReport) model.Summary {
	s := model.Summary{
		Period:              report.Period,
		TotalsByMethod:      ComputeTotals(report),
		DivergentCount:      report.DivergentCount(),
		ResolvedDivergences: report.ResolvedDivergences,
	}

	for i := range report.Invoices {
		inv := &report.Invoices[i]
		if inv.Dropped {
			continue
		}
		if inv.Cancelled {
			s.CancelledCount++
			continue
		}
		s.InvoiceCount++
		if inv.Type == model.TypeReturn || inv.Amount.IsNegative() {
			s.Returns = s.Returns.Add(inv.Amount.Abs())
		} else {
			s.GrossSales = s.GrossSales.Add(inv.Amount)
		}
	}

	for _, sale := range report.NoInvoiceSales {
		s.NoInvoiceCount++
		s.NoInvoiceSales = s.NoInvoiceSales.Add(sale.Amount)
	}
	for _, exp := range report.Expenses {
		s.ExpenseCount++
		s.Expenses = s.Expenses.Add(exp.Amount.Abs())
	}

	s.NetTotal = s.GrossSales.Sub(s.Returns).Add(s.NoInvoiceSales).Sub(s.Expenses)
	return s
}
