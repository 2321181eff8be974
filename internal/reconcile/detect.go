package reconcile

import (
	"fmt"

	"github.com/Veraticus/conciliador/internal/model"
)

const dateLayout = "2006-01-02"

// Detect inspects a classified invoice and records every divergence kind that
// applies. The first kind in evaluation order determines the reason and
// severity. Invoices without divergences get their final seller assigned.
func Detect(inv *model.ReconciledInvoice, policy Policy, known func(key string) bool) {
	var kinds []model.DivergenceKind
	var reasons []string

	if inv.HasMovement && inv.HasXML &&
		!inv.MovementSeller.IsZero() && !inv.XMLSeller.IsZero() &&
		!inv.MovementSeller.Equal(inv.XMLSeller) {
		kinds = append(kinds, model.KindSellerMismatch)
		reasons = append(reasons, fmt.Sprintf("seller mismatch: movement %s, XML %s", inv.MovementSeller, inv.XMLSeller))
	}

	if inv.HasMovement && inv.HasXML && !model.SameDay(inv.PaymentDate, inv.EmissionDate) {
		kinds = append(kinds, model.KindDateMismatch)
		reasons = append(reasons, fmt.Sprintf("date mismatch: paid %s, issued %s",
			inv.PaymentDate.Format(dateLayout), inv.EmissionDate.Format(dateLayout)))
	}

	if inv.HasMovement && !inv.HasXML && policy.MissingXMLIsDivergence {
		kinds = append(kinds, model.KindMissingXML)
		reasons = append(reasons, "paid in the movement sheet but no fiscal XML was found")
	}

	if isOrphanReturn(inv, known) {
		kinds = append(kinds, model.KindOrphanReturn)
		if inv.OriginalKey == "" {
			reasons = append(reasons, "return does not reference an original sale")
		} else {
			reasons = append(reasons, fmt.Sprintf("return references unknown original sale %s", inv.OriginalKey))
		}
	}

	if len(kinds) == 0 && ResolveSeller(inv).IsZero() {
		kinds = append(kinds, model.KindMissingSeller)
		reasons = append(reasons, "no seller in either source")
	}

	inv.DivergenceKinds = kinds
	if len(kinds) == 0 {
		inv.DivergenceStatus = model.StatusOK
		inv.DivergenceReason = ""
		inv.Severity = model.SeverityNone
		inv.FinalSeller = ResolveSeller(inv)
		return
	}

	inv.DivergenceStatus = model.StatusDivergent
	inv.DivergenceReason = reasons[0]
	inv.Severity = model.SeverityOf(kinds[0])
	inv.FinalSeller = model.NoSeller
	for _, k := range kinds[1:] {
		if model.SeverityOf(k) == model.SeverityCritical {
			inv.Severity = model.SeverityCritical
		}
	}
}

// isOrphanReturn reports whether a return has no identifiable original sale.
// A cancelled invoice offsets itself and is never orphaned.
func isOrphanReturn(inv *model.ReconciledInvoice, known func(key string) bool) bool {
	if inv.Type != model.TypeReturn || (inv.Cancelled && inv.OriginalKey == "") {
		return false
	}
	if inv.OriginalKey == "" {
		return true
	}
	return known == nil || !known(inv.OriginalKey)
}
