package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/conciliador/internal/model"
)

const dayLayout = "2006-01-02"

// Totals is the read-side view of a period's ledger.
type Totals struct {
	BySeller map[model.SellerCode]decimal.Decimal
	ByMethod map[model.PaymentMethod]decimal.Decimal
	ByDay    map[string]decimal.Decimal
	Total    decimal.Decimal
	Entries  int
}

// Aggregate sums entries by seller, payment method and day.
func Aggregate(entries []model.LedgerEntry) Totals {
	t := Totals{
		BySeller: make(map[model.SellerCode]decimal.Decimal),
		ByMethod: make(map[model.PaymentMethod]decimal.Decimal),
		ByDay:    make(map[string]decimal.Decimal),
	}
	for _, e := range entries {
		t.Entries++
		t.Total = t.Total.Add(e.Amount)
		if !e.Seller.IsZero() {
			t.BySeller[e.Seller] = t.BySeller[e.Seller].Add(e.Amount)
		}
		method := e.PaymentMethod
		if method == "" {
			method = model.PaymentOther
		}
		t.ByMethod[method] = t.ByMethod[method].Add(e.Amount)
		if !e.Date.IsZero() {
			d := e.Date.Format(dayLayout)
			t.ByDay[d] = t.ByDay[d].Add(e.Amount)
		}
	}
	return t
}

// Days returns the aggregated days in chronological order.
func (t Totals) Days() []string {
	days := make([]string, 0, len(t.ByDay))
	for d := range t.ByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Sellers returns the aggregated sellers in code order.
func (t Totals) Sellers() []model.SellerCode {
	sellers := make([]model.SellerCode, 0, len(t.BySeller))
	for s := range t.BySeller {
		sellers = append(sellers, s)
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i] < sellers[j] })
	return sellers
}
