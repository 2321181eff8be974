package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
)

// InvoiceBuilder builds reconciled invoices for tests. The zero configuration
// is a resolved same-day PIX sale of 100.
type InvoiceBuilder struct {
	inv model.ReconciledInvoice
}

// NewInvoice starts a resolved invoice with the given key.
func NewInvoice(key string) *InvoiceBuilder {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &InvoiceBuilder{inv: model.ReconciledInvoice{
		Key:              key,
		Type:             model.TypePaidSameDay,
		Amount:           decimal.NewFromInt(100),
		EffectiveDate:    d,
		PaymentDate:      d,
		EmissionDate:     d,
		PaymentMethod:    model.PaymentPix,
		DivergenceStatus: model.StatusOK,
		HasMovement:      true,
		HasXML:           true,
	}}
}

// Seller sets movement, XML and final seller to the same code.
func (b *InvoiceBuilder) Seller(code string) *InvoiceBuilder {
	s := model.NormalizeSeller(code)
	b.inv.MovementSeller, b.inv.XMLSeller = s, s
	if !b.inv.IsDivergent() {
		b.inv.FinalSeller = s
	}
	return b
}

// Amount sets the amount from a decimal literal.
func (b *InvoiceBuilder) Amount(v string) *InvoiceBuilder {
	b.inv.Amount = decimal.RequireFromString(v)
	return b
}

// On sets every date to the given day of the invoice's month.
func (b *InvoiceBuilder) On(day int) *InvoiceBuilder {
	d := time.Date(b.inv.EffectiveDate.Year(), b.inv.EffectiveDate.Month(), day, 0, 0, 0, 0, time.UTC)
	b.inv.EffectiveDate, b.inv.PaymentDate, b.inv.EmissionDate = d, d, d
	return b
}

// Method sets the payment method.
func (b *InvoiceBuilder) Method(m model.PaymentMethod) *InvoiceBuilder {
	b.inv.PaymentMethod = m
	return b
}

// Return turns the invoice into a return with a negative amount.
func (b *InvoiceBuilder) Return(originalKey string) *InvoiceBuilder {
	b.inv.Type = model.TypeReturn
	b.inv.Amount = b.inv.Amount.Abs().Neg()
	b.inv.OriginalKey = originalKey
	return b
}

// Cancelled marks the invoice as cancelled.
func (b *InvoiceBuilder) Cancelled() *InvoiceBuilder {
	b.inv.Cancelled = true
	return b
}

// SellerMismatch makes the invoice a pending seller divergence.
func (b *InvoiceBuilder) SellerMismatch(movement, xml string) *InvoiceBuilder {
	b.inv.MovementSeller = model.NormalizeSeller(movement)
	b.inv.XMLSeller = model.NormalizeSeller(xml)
	return b.Divergent(model.KindSellerMismatch)
}

// Divergent flags the invoice with the given kinds and clears the final seller.
func (b *InvoiceBuilder) Divergent(kinds ...model.DivergenceKind) *InvoiceBuilder {
	b.inv.DivergenceStatus = model.StatusDivergent
	b.inv.DivergenceKinds = append(b.inv.DivergenceKinds, kinds...)
	b.inv.DivergenceReason = string(kinds[0])
	b.inv.Severity = model.SeverityOf(kinds[0])
	b.inv.FinalSeller = model.NoSeller
	return b
}

// Build returns a copy of the invoice.
func (b *InvoiceBuilder) Build() model.ReconciledInvoice {
	return b.inv.Clone()
}

// ReportBuilder builds monthly reports with consistent totals.
type ReportBuilder struct {
	report *model.MonthlyReport
}

// NewReport starts an empty report for a period.
func NewReport(period model.PeriodID) *ReportBuilder {
	return &ReportBuilder{report: model.NewMonthlyReport(period)}
}

// WithInvoice appends invoices.
func (b *ReportBuilder) WithInvoice(invoices ...model.ReconciledInvoice) *ReportBuilder {
	b.report.Invoices = append(b.report.Invoices, invoices...)
	return b
}

// WithNoInvoiceSale appends a till sale.
func (b *ReportBuilder) WithNoInvoiceSale(seller, amount string, method model.PaymentMethod) *ReportBuilder {
	b.report.NoInvoiceSales = append(b.report.NoInvoiceSales, model.NoInvoiceSale{
		Date:          b.report.Period.Start(),
		Amount:        decimal.RequireFromString(amount),
		Seller:        model.NormalizeSeller(seller),
		PaymentMethod: method,
	})
	return b
}

// WithExpense appends an expense.
func (b *ReportBuilder) WithExpense(amount string, method model.PaymentMethod) *ReportBuilder {
	b.report.Expenses = append(b.report.Expenses, model.ExpenseEntry{
		Date:          b.report.Period.Start(),
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: method,
	})
	return b
}

// Build returns the report with totals recomputed.
func (b *ReportBuilder) Build() *model.MonthlyReport {
	b.report.TotalsByMethod = reconcile.ComputeTotals(b.report)
	return b.report
}
