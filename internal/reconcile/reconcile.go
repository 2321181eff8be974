package reconcile

import (
	"log/slog"
	"sort"

	"github.com/Veraticus/conciliador/internal/model"
)

// Result is the output of a classification pass over one import batch.
type Result struct {
	Invoices []model.ReconciledInvoice
	// Queue lists the indices into Invoices that need a human decision, in
	// discovery order.
	Queue []int
}

// AutoResolved reports how many invoices needed no human step.
func (r *Result) AutoResolved() int {
	return len(r.Invoices) - len(r.Queue)
}

// ClassifyAndDetect classifies every key in the union of both sources and
// runs divergence detection. Keys are visited in sorted order.
func ClassifyAndDetect(movementByKey map[string]model.MovementRecord, xmlByKey map[string]model.InvoiceXMLRecord, policy Policy) (*Result, error) {
	keys := unionKeys(movementByKey, xmlByKey)

	known := func(key string) bool {
		if _, ok := movementByKey[key]; ok {
			return true
		}
		if _, ok := xmlByKey[key]; ok {
			return true
		}
		return policy.KnownKey != nil && policy.KnownKey(key)
	}

	result := &Result{Invoices: make([]model.ReconciledInvoice, 0, len(keys))}
	for _, key := range keys {
		var movPtr *model.MovementRecord
		var xmlPtr *model.InvoiceXMLRecord
		if mov, ok := movementByKey[key]; ok {
			movPtr = &mov
		}
		if xml, ok := xmlByKey[key]; ok {
			xmlPtr = &xml
		}

		inv, err := Classify(key, movPtr, xmlPtr)
		if err != nil {
			return nil, err
		}
		Detect(&inv, policy, known)

		if inv.IsDivergent() {
			result.Queue = append(result.Queue, len(result.Invoices))
		}
		result.Invoices = append(result.Invoices, inv)
	}

	slog.Debug("Classified import batch",
		"invoices", len(result.Invoices),
		"divergent", len(result.Queue))

	return result, nil
}

func unionKeys(movementByKey map[string]model.MovementRecord, xmlByKey map[string]model.InvoiceXMLRecord) []string {
	seen := make(map[string]struct{}, len(movementByKey)+len(xmlByKey))
	for k := range movementByKey {
		seen[k] = struct{}{}
	}
	for k := range xmlByKey {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
