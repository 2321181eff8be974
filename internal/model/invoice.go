package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType is the reconciled nature of an invoice.
type InvoiceType string

// Invoice types.
const (
	TypePaidSameDay InvoiceType = "PAID_SAME_DAY"
	TypeInvoiced    InvoiceType = "INVOICED"
	TypeReturn      InvoiceType = "RETURN"
)

// DivergenceStatus indicates whether an invoice still needs a human decision.
type DivergenceStatus string

// Divergence statuses.
const (
	StatusOK        DivergenceStatus = "OK"
	StatusDivergent DivergenceStatus = "DIVERGENT"
)

// DivergenceKind names one inconsistency between the two sources.
type DivergenceKind string

// Divergence kinds in evaluation order.
const (
	KindSellerMismatch DivergenceKind = "SELLER_MISMATCH"
	KindDateMismatch   DivergenceKind = "DATE_MISMATCH"
	KindMissingXML     DivergenceKind = "MISSING_XML"
	KindOrphanReturn   DivergenceKind = "ORPHAN_RETURN"
	KindMissingSeller  DivergenceKind = "MISSING_SELLER"
)

// Severity grades a divergence.
type Severity string

// Severities.
const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityOf returns the severity attached to a divergence kind.
func SeverityOf(kind DivergenceKind) Severity {
	switch kind {
	case KindMissingXML, KindOrphanReturn:
		return SeverityCritical
	case KindSellerMismatch, KindDateMismatch, KindMissingSeller:
		return SeverityWarning
	default:
		return SeverityNone
	}
}

// ReconciledInvoice is the durable unit of truth for one invoice key.
type ReconciledInvoice struct {
	EffectiveDate    time.Time
	PaymentDate      time.Time
	EmissionDate     time.Time
	Amount           decimal.Decimal
	Key              string
	Type             InvoiceType
	MovementSeller   SellerCode
	XMLSeller        SellerCode
	CorrectedSeller  SellerCode
	FinalSeller      SellerCode
	DivergenceStatus DivergenceStatus
	DivergenceReason string
	Severity         Severity
	Buyer            string
	Note             string
	OriginalKey      string
	PaymentMethod    PaymentMethod
	DivergenceKinds  []DivergenceKind
	HasMovement      bool
	HasXML           bool
	Cancelled        bool
	Dropped          bool
}

// IsDivergent reports whether the invoice awaits resolution.
func (r *ReconciledInvoice) IsDivergent() bool {
	return r.DivergenceStatus == StatusDivergent
}

// HasKind reports whether a divergence kind was ever flagged on the invoice.
// Kinds survive resolution for auditing.
func (r *ReconciledInvoice) HasKind(kind DivergenceKind) bool {
	return slices.Contains(r.DivergenceKinds, kind)
}

// AttributedSeller is the seller used for reporting: the final seller when
// resolved, otherwise the best available source.
func (r *ReconciledInvoice) AttributedSeller() SellerCode {
	return FirstSeller(r.FinalSeller, r.CorrectedSeller, r.MovementSeller, r.XMLSeller)
}

// Clone returns a deep copy.
func (r ReconciledInvoice) Clone() ReconciledInvoice {
	r.DivergenceKinds = slices.Clone(r.DivergenceKinds)
	return r
}
