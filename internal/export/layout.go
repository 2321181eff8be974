package export

import (
	"sort"

	"github.com/Veraticus/conciliador/internal/model"
	"github.com/shopspring/decimal"
)

// Sheet names.
const (
	SheetSummary     = "Resumo"
	SheetInvoices    = "Notas"
	SheetNoInvoice   = "Vendas sem nota"
	SheetExpenses    = "Despesas"
	SheetCommissions = "Comissoes"
)

// Sheet is one worksheet worth of values. Row 0 is the header.
type Sheet struct {
	Name            string
	Rows            [][]any
	CurrencyColumns []int
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func day(inv model.ReconciledInvoice) string {
	if inv.EffectiveDate.IsZero() {
		return ""
	}
	return inv.EffectiveDate.Format("2006-01-02")
}

// Layout arranges a period into worksheets. The snapshot carries the summary
// and commissions (frozen for a closed period, simulated for an open one);
// the report supplies the detail rows.
func Layout(report *model.MonthlyReport, snapshot *model.ConsolidatedSummary) []Sheet {
	return []Sheet{
		summarySheet(report.Period, snapshot),
		invoicesSheet(report),
		noInvoiceSheet(report),
		expensesSheet(report),
		commissionsSheet(snapshot),
	}
}

func summarySheet(period model.PeriodID, snapshot *model.ConsolidatedSummary) Sheet {
	s := snapshot.Summary
	rows := [][]any{
		{"Período", string(period)},
		{"Gerado em", snapshot.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Vendas brutas", money(s.GrossSales)},
		{"Devoluções", money(s.Returns)},
		{"Vendas sem nota", money(s.NoInvoiceSales)},
		{"Despesas", money(s.Expenses)},
		{"Total líquido", money(s.NetTotal)},
		{"Comissões", money(snapshot.CommissionTotal)},
		{},
		{"Notas", s.InvoiceCount},
		{"Canceladas", s.CancelledCount},
		{"Divergências resolvidas", s.ResolvedDivergences},
		{},
		{"Forma de pagamento", "Total"},
	}

	methods := make([]string, 0, len(s.TotalsByMethod))
	for m := range s.TotalsByMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	for _, m := range methods {
		rows = append(rows, []any{m, money(s.TotalsByMethod[model.PaymentMethod(m)])})
	}

	return Sheet{Name: SheetSummary, Rows: rows}
}

func invoicesSheet(report *model.MonthlyReport) Sheet {
	rows := [][]any{{"Data", "NF", "Tipo", "Vendedor", "Forma", "Valor", "Cliente", "Situação", "Observação"}}

	invoices := make([]model.ReconciledInvoice, len(report.Invoices))
	copy(invoices, report.Invoices)
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].EffectiveDate.Before(invoices[j].EffectiveDate)
	})

	for _, inv := range invoices {
		status := string(inv.DivergenceStatus)
		switch {
		case inv.Dropped:
			status = "IGNORADA"
		case inv.Cancelled:
			status = "CANCELADA"
		}
		rows = append(rows, []any{
			day(inv),
			inv.Key,
			string(inv.Type),
			string(inv.AttributedSeller()),
			string(inv.PaymentMethod),
			money(inv.Amount),
			inv.Buyer,
			status,
			inv.DivergenceReason,
		})
	}
	return Sheet{Name: SheetInvoices, Rows: rows, CurrencyColumns: []int{5}}
}

func noInvoiceSheet(report *model.MonthlyReport) Sheet {
	rows := [][]any{{"Data", "Vendedor", "Forma", "Valor", "Descrição"}}
	for _, s := range report.NoInvoiceSales {
		rows = append(rows, []any{
			s.Date.Format("2006-01-02"),
			string(s.Seller),
			string(s.PaymentMethod),
			money(s.Amount),
			s.Description,
		})
	}
	return Sheet{Name: SheetNoInvoice, Rows: rows, CurrencyColumns: []int{3}}
}

func expensesSheet(report *model.MonthlyReport) Sheet {
	rows := [][]any{{"Data", "Forma", "Valor", "Descrição"}}
	for _, e := range report.Expenses {
		rows = append(rows, []any{
			e.Date.Format("2006-01-02"),
			string(e.PaymentMethod),
			money(e.Contribution()),
			e.Description,
		})
	}
	return Sheet{Name: SheetExpenses, Rows: rows, CurrencyColumns: []int{2}}
}

func commissionsSheet(snapshot *model.ConsolidatedSummary) Sheet {
	rows := [][]any{{"Vendedor", "Vendas", "Devoluções", "Base", "Taxa %", "Comissão"}}
	for _, line := range snapshot.Commissions {
		rows = append(rows, []any{
			string(line.Seller),
			money(line.GrossSales),
			money(line.Returns),
			money(line.Base),
			line.Rate.InexactFloat64(),
			money(line.Commission),
		})
	}
	rows = append(rows, []any{"Total", "", "", "", "", money(snapshot.CommissionTotal)})
	return Sheet{Name: SheetCommissions, Rows: rows, CurrencyColumns: []int{1, 2, 3, 5}}
}
