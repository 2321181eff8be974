package reconcile

import "github.com/Veraticus/conciliador/internal/model"

// Policy holds the orchestrator-owned choices applied during detection.
type Policy struct {
	// KnownKey reports whether an invoice key exists outside the current
	// batch, typically in the saved report. Used to find the original sale of
	// a return. May be nil.
	KnownKey func(key string) bool
	// MissingXMLIsDivergence flags movement entries with no fiscal document.
	// When false they are accepted as legitimate till sales.
	MissingXMLIsDivergence bool
}

// DefaultPolicy treats missing documentation as a fiscal risk.
func DefaultPolicy() Policy {
	return Policy{MissingXMLIsDivergence: true}
}

// ResolveSeller picks the authoritative seller of a non-divergent invoice.
// Same-day cash sales belong to whoever rang the register; invoiced and term
// sales belong to the seller named on the fiscal document.
func ResolveSeller(inv *model.ReconciledInvoice) model.SellerCode {
	if inv.Type == model.TypePaidSameDay {
		return model.FirstSeller(inv.MovementSeller, inv.XMLSeller)
	}
	return model.FirstSeller(inv.XMLSeller, inv.MovementSeller)
}
