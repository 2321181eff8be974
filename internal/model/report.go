package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyReport is the aggregate root for one calendar period.
type MonthlyReport struct {
	UpdatedAt           time.Time
	TotalsByMethod      map[PaymentMethod]decimal.Decimal
	Period              PeriodID
	Invoices            []ReconciledInvoice
	NoInvoiceSales      []NoInvoiceSale
	Expenses            []ExpenseEntry
	ResolvedDivergences int
}

// NewMonthlyReport creates an empty report for a period.
func NewMonthlyReport(period PeriodID) *MonthlyReport {
	return &MonthlyReport{
		Period:         period,
		TotalsByMethod: make(map[PaymentMethod]decimal.Decimal),
	}
}

// DivergentCount returns how many invoices still await resolution.
func (r *MonthlyReport) DivergentCount() int {
	count := 0
	for i := range r.Invoices {
		if r.Invoices[i].IsDivergent() && !r.Invoices[i].Dropped {
			count++
		}
	}
	return count
}

// InvoiceIndex returns the position of a key in the invoice list, or -1.
func (r *MonthlyReport) InvoiceIndex(key string) int {
	for i := range r.Invoices {
		if r.Invoices[i].Key == key {
			return i
		}
	}
	return -1
}

// Summary holds totals recomputed from a report.
type Summary struct {
	TotalsByMethod      map[PaymentMethod]decimal.Decimal `json:"totals_by_method"`
	Period              PeriodID                          `json:"period"`
	GrossSales          decimal.Decimal                   `json:"gross_sales"`
	Returns             decimal.Decimal                   `json:"returns"`
	NoInvoiceSales      decimal.Decimal                   `json:"no_invoice_sales"`
	Expenses            decimal.Decimal                   `json:"expenses"`
	NetTotal            decimal.Decimal                   `json:"net_total"`
	InvoiceCount        int                               `json:"invoice_count"`
	NoInvoiceCount      int                               `json:"no_invoice_count"`
	ExpenseCount        int                               `json:"expense_count"`
	CancelledCount      int                               `json:"cancelled_count"`
	DivergentCount      int                               `json:"divergent_count"`
	ResolvedDivergences int                               `json:"resolved_divergences"`
}

// ConsolidatedSummary is the snapshot frozen when a period closes.
type ConsolidatedSummary struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	CommissionTotal decimal.Decimal  `json:"commission_total"`
	Commissions     []CommissionLine `json:"commissions"`
	Summary         Summary          `json:"summary"`
}
