package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is a normalized payment method label.
type PaymentMethod string

// Known payment methods. Unrecognized labels are kept verbatim in upper case.
const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentPix    PaymentMethod = "PIX"
	PaymentCredit PaymentMethod = "CREDIT_CARD"
	PaymentDebit  PaymentMethod = "DEBIT_CARD"
	PaymentTerm   PaymentMethod = "TERM"
	PaymentOther  PaymentMethod = "OTHER"
)

var paymentAliases = map[string]PaymentMethod{
	"CASH":              PaymentCash,
	"DINHEIRO":          PaymentCash,
	"ESPECIE":           PaymentCash,
	"PIX":               PaymentPix,
	"CREDITO":           PaymentCredit,
	"CARTAO CREDITO":    PaymentCredit,
	"CARTAO DE CREDITO": PaymentCredit,
	"CREDIT":            PaymentCredit,
	"CREDIT_CARD":       PaymentCredit,
	"DEBITO":            PaymentDebit,
	"CARTAO DEBITO":     PaymentDebit,
	"CARTAO DE DEBITO":  PaymentDebit,
	"DEBIT":             PaymentDebit,
	"DEBIT_CARD":        PaymentDebit,
	"BOLETO":            PaymentTerm,
	"PRAZO":             PaymentTerm,
	"A PRAZO":           PaymentTerm,
	"FATURADO":          PaymentTerm,
	"TERM":              PaymentTerm,
}

var accentFolder = strings.NewReplacer(
	"Á", "A", "Ã", "A", "Â", "A", "À", "A",
	"É", "E", "Ê", "E",
	"Í", "I",
	"Ó", "O", "Õ", "O", "Ô", "O",
	"Ú", "U",
	"Ç", "C",
)

// FoldLabel upper-cases a free-text label, collapses inner whitespace and
// strips Portuguese accents.
func FoldLabel(raw string) string {
	return accentFolder.Replace(strings.ToUpper(strings.Join(strings.Fields(raw), " ")))
}

// NormalizePaymentMethod maps spreadsheet labels onto known methods.
func NormalizePaymentMethod(raw string) PaymentMethod {
	label := FoldLabel(raw)
	if label == "" {
		return PaymentOther
	}
	if m, ok := paymentAliases[label]; ok {
		return m
	}
	return PaymentMethod(label)
}

// MovementRecord is one invoice's appearance in the cash/movement spreadsheet.
type MovementRecord struct {
	PaymentDate     time.Time
	Amount          decimal.Decimal
	Key             string
	Seller          SellerCode
	CorrectedSeller SellerCode
	PaymentMethod   PaymentMethod
}

// InvoiceXMLRecord is one invoice's appearance in the fiscal (NFe) documents.
type InvoiceXMLRecord struct {
	EmissionDate time.Time
	Amount       decimal.Decimal
	Key          string
	Seller       SellerCode
	Buyer        string
	BuyerID      string
	Note         string
	OriginalKey  string // referenced invoice for returns
	Cancelled    bool
	IsReturn     bool
}

// MovementBatch is everything extracted from one movement spreadsheet.
type MovementBatch struct {
	InvoicesByKey  map[string]MovementRecord
	TotalsByMethod map[PaymentMethod]decimal.Decimal
	NoInvoiceSales []NoInvoiceSale
	Expenses       []ExpenseEntry
}

// NoInvoiceSale is a till sale with no matching fiscal document.
type NoInvoiceSale struct {
	Date          time.Time
	Amount        decimal.Decimal
	Seller        SellerCode
	PaymentMethod PaymentMethod
	Description   string
}

// ExpenseEntry is a manually entered outflow. Amount is stored as a positive
// magnitude; it always reduces the period total.
type ExpenseEntry struct {
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Description   string
}

// Contribution returns the signed effect of the expense on totals.
func (e ExpenseEntry) Contribution() decimal.Decimal {
	return e.Amount.Abs().Neg()
}

// NormalizeKey canonicalizes an invoice number so both sources agree:
// surrounding space and a spreadsheet ".0" suffix are dropped, and purely
// numeric keys lose their leading zeros.
func NormalizeKey(raw string) string {
	key := strings.TrimSpace(raw)
	key = strings.TrimSuffix(key, ".0")
	if key == "" {
		return ""
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return strings.ToUpper(key)
		}
	}
	trimmed := strings.TrimLeft(key, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
