// Package reconcile turns movement and fiscal records into reconciled invoices,
// detects divergences between the two sources and merges re-imports into an
// existing monthly report.
package reconcile

import (
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// Classify builds the provisional reconciled invoice for one key. At least one
// of mov and xml must be non-nil.
func Classify(key string, mov *model.MovementRecord, xml *model.InvoiceXMLRecord) (model.ReconciledInvoice, error) {
	if mov == nil && xml == nil {
		return model.ReconciledInvoice{}, common.NewIntegrityError("invoice key %q has neither movement nor XML evidence", key)
	}

	inv := model.ReconciledInvoice{
		Key:              key,
		DivergenceStatus: model.StatusOK,
	}

	if mov != nil {
		inv.HasMovement = true
		inv.PaymentDate = mov.PaymentDate
		inv.MovementSeller = mov.Seller
		inv.CorrectedSeller = mov.CorrectedSeller
		inv.PaymentMethod = mov.PaymentMethod
		inv.Amount = mov.Amount
	}

	if xml == nil {
		// Till entry without a fiscal document: attributed to whoever rang it.
		inv.Type = model.TypePaidSameDay
		inv.EffectiveDate = mov.PaymentDate
		inv.FinalSeller = mov.Seller
		return inv, nil
	}

	inv.HasXML = true
	inv.EmissionDate = xml.EmissionDate
	inv.XMLSeller = xml.Seller
	inv.Buyer = xml.Buyer
	inv.Note = xml.Note
	inv.OriginalKey = xml.OriginalKey
	inv.Cancelled = xml.Cancelled
	inv.Amount = xml.Amount

	switch {
	case xml.IsReturn || xml.Cancelled || xml.Amount.IsNegative():
		inv.Type = model.TypeReturn
		inv.Amount = xml.Amount.Abs().Neg()
	case mov != nil && model.SameDay(mov.PaymentDate, xml.EmissionDate):
		inv.Type = model.TypePaidSameDay
	default:
		inv.Type = model.TypeInvoiced
	}

	if inv.Type == model.TypePaidSameDay {
		inv.EffectiveDate = mov.PaymentDate
	} else {
		inv.EffectiveDate = xml.EmissionDate
	}

	if inv.PaymentMethod == "" {
		inv.PaymentMethod = model.PaymentTerm
	}

	return inv, nil
}
