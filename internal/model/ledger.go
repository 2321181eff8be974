package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSource identifies what a ledger entry was derived from.
type LedgerSource string

// Ledger sources.
const (
	SourceInvoice   LedgerSource = "INVOICE"
	SourceNoInvoice LedgerSource = "NO_INVOICE_SALE"
	SourceExpense   LedgerSource = "EXPENSE"
)

// LedgerEntry is an append-only fact derived from a reconciled report.
type LedgerEntry struct {
	Date          time.Time
	CreatedAt     time.Time
	Amount        decimal.Decimal
	ID            string
	Period        PeriodID
	Source        LedgerSource
	SourceKey     string
	Seller        SellerCode
	PaymentMethod PaymentMethod
	IsLocked      bool
}
