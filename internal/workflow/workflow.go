// Package workflow walks an operator through the divergence queue one record
// at a time. A Workflow is an immutable value: every step returns a new one,
// so callers may persist, replay or discard it freely.
package workflow

import (
	"slices"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// QueueItem points at one divergent invoice.
type QueueItem struct {
	InvoiceIndex int `json:"invoice_index"`
	Position     int `json:"position"`
}

// Workflow is the serializable state of a resolution session.
type Workflow struct {
	Invoices []model.ReconciledInvoice `json:"invoices"`
	Queue    []QueueItem               `json:"queue"`
	// Pending keeps each queued record as classified so that re-resolving an
	// item overwrites the earlier decision instead of stacking on it.
	Pending   []model.ReconciledInvoice `json:"pending"`
	Decisions []Decision                `json:"decisions"`
	Current   int                       `json:"current"`
	Done      bool                      `json:"done"`
}

// Result is the outcome of a finished workflow.
type Result struct {
	Invoices      []model.ReconciledInvoice
	ResolvedCount int
	DroppedCount  int
}

// New starts a workflow over the divergent, non-dropped invoices in discovery
// order. An empty queue yields a finished workflow.
func New(invoices []model.ReconciledInvoice) Workflow {
	w := Workflow{Invoices: cloneInvoices(invoices)}
	for i := range w.Invoices {
		inv := &w.Invoices[i]
		if !inv.IsDivergent() || inv.Dropped {
			continue
		}
		w.Queue = append(w.Queue, QueueItem{InvoiceIndex: i, Position: len(w.Queue)})
		w.Pending = append(w.Pending, inv.Clone())
	}
	w.Decisions = make([]Decision, len(w.Queue))
	w.Done = len(w.Queue) == 0
	return w
}

// Len returns the queue size.
func (w Workflow) Len() int {
	return len(w.Queue)
}

// CurrentItem returns the queue item under the cursor and its invoice as it is
// currently recorded. ok is false for an empty queue.
func (w Workflow) CurrentItem() (QueueItem, model.ReconciledInvoice, bool) {
	if len(w.Queue) == 0 {
		return QueueItem{}, model.ReconciledInvoice{}, false
	}
	item := w.Queue[w.Current]
	return item, w.Pending[item.Position].Clone(), true
}

// DecisionAt returns the decision recorded for a queue position.
func (w Workflow) DecisionAt(position int) (Decision, bool) {
	if position < 0 || position >= len(w.Decisions) || w.Decisions[position].Code == "" {
		return Decision{}, false
	}
	return w.Decisions[position], true
}

// DecidedCount returns how many queue positions carry a decision.
func (w Workflow) DecidedCount() int {
	n := 0
	for _, d := range w.Decisions {
		if d.Code != "" {
			n++
		}
	}
	return n
}

// Resolve applies a decision to the current item and advances the cursor.
// Resolving the last item finishes the workflow. A decision that cannot apply
// to the record is rejected with a validation error and the workflow is
// returned unchanged.
func (w Workflow) Resolve(d Decision) (Workflow, error) {
	if w.Done {
		return w, common.NewValidationError(nil, "divergence workflow is already finished")
	}

	item := w.Queue[w.Current]
	resolved, err := apply(w.Pending[item.Position].Clone(), d)
	if err != nil {
		return w, err
	}

	next := w.clone()
	next.Invoices[item.InvoiceIndex] = resolved
	next.Decisions[item.Position] = d
	if next.Current == len(next.Queue)-1 {
		next.Done = true
	} else {
		next.Current++
	}
	return next, nil
}

// GoBack moves the cursor to the previous item. It is a no-op at the first
// item. On a finished workflow it reopens the last item. Earlier decisions
// stay in place until the item is resolved again.
func (w Workflow) GoBack() Workflow {
	if len(w.Queue) == 0 {
		return w
	}
	next := w.clone()
	if next.Done {
		next.Done = false
		return next
	}
	if next.Current > 0 {
		next.Current--
	}
	return next
}

// Result returns the final invoice list without dropped records. It is only
// available once the workflow is finished.
func (w Workflow) Result() (Result, error) {
	if !w.Done {
		return Result{}, common.NewValidationError(nil,
			"divergence workflow has %d of %d items left", len(w.Queue)-w.DecidedCount(), len(w.Queue))
	}

	res := Result{
		Invoices:      make([]model.ReconciledInvoice, 0, len(w.Invoices)),
		ResolvedCount: len(w.Queue),
	}
	for _, inv := range w.Invoices {
		if inv.Dropped {
			res.DroppedCount++
			continue
		}
		res.Invoices = append(res.Invoices, inv.Clone())
	}
	return res, nil
}

func (w Workflow) clone() Workflow {
	w.Invoices = cloneInvoices(w.Invoices)
	w.Queue = slices.Clone(w.Queue)
	w.Pending = cloneInvoices(w.Pending)
	w.Decisions = slices.Clone(w.Decisions)
	return w
}

func cloneInvoices(in []model.ReconciledInvoice) []model.ReconciledInvoice {
	if in == nil {
		return nil
	}
	out := make([]model.ReconciledInvoice, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// apply resolves a record according to a decision. Divergence kinds are never
// touched so the audit trail survives.
func apply(inv model.ReconciledInvoice, d Decision) (model.ReconciledInvoice, error) {
	switch d.Code {
	case UseMovementSeller:
		if inv.MovementSeller.IsZero() {
			return inv, common.NewValidationError(nil, "invoice %s has no movement seller", inv.Key)
		}
		inv.FinalSeller = inv.MovementSeller
	case UseXMLSeller:
		if inv.XMLSeller.IsZero() {
			return inv, common.NewValidationError(nil, "invoice %s has no XML seller", inv.Key)
		}
		inv.FinalSeller = inv.XMLSeller
	case UseCorrectedSeller:
		if inv.CorrectedSeller.IsZero() {
			return inv, common.NewValidationError(nil, "invoice %s has no corrected seller", inv.Key)
		}
		inv.FinalSeller = inv.CorrectedSeller
	case ExplicitSeller:
		seller := model.NormalizeSeller(string(d.Seller))
		if seller.IsZero() {
			return inv, common.NewValidationError(nil, "seller code is required")
		}
		inv.FinalSeller = seller
	case UseMovementDate:
		if !inv.HasMovement {
			return inv, common.NewValidationError(nil, "invoice %s has no movement date", inv.Key)
		}
		seller, err := dateDecisionSeller(inv, d)
		if err != nil {
			return inv, err
		}
		inv.EffectiveDate = inv.PaymentDate
		inv.FinalSeller = seller
	case UseXMLDate:
		if !inv.HasXML {
			return inv, common.NewValidationError(nil, "invoice %s has no XML date", inv.Key)
		}
		seller, err := dateDecisionSeller(inv, d)
		if err != nil {
			return inv, err
		}
		inv.EffectiveDate = inv.EmissionDate
		inv.FinalSeller = seller
	case Ignore:
		inv.Dropped = true
		inv.FinalSeller = model.NoSeller
	default:
		return inv, common.NewIntegrityError("unknown decision code %q", string(d.Code))
	}

	if d.Code != Ignore && inv.FinalSeller.IsZero() {
		return inv, common.NewValidationError(nil, "invoice %s has no seller to assign; use =CODE", inv.Key)
	}

	inv.DivergenceStatus = model.StatusOK
	return inv, nil
}

// dateDecisionSeller picks the seller for a date decision. A seller typed with
// the decision wins. Otherwise movement then XML is used, unless the record
// also carries a seller conflict, which the operator has to settle.
func dateDecisionSeller(inv model.ReconciledInvoice, d Decision) (model.SellerCode, error) {
	if seller := model.NormalizeSeller(string(d.Seller)); !seller.IsZero() {
		return seller, nil
	}
	if inv.HasKind(model.KindSellerMismatch) {
		return model.NoSeller, common.NewValidationError(nil,
			"invoice %s also has a seller conflict; pick the seller with %s=CODE", inv.Key, d.Code)
	}
	return model.FirstSeller(inv.MovementSeller, inv.XMLSeller), nil
}
