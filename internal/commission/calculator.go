// Package commission derives seller commissions from a reconciled report.
package commission

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Calculator holds the commission rate table. Rates are percentages.
type Calculator struct {
	Rates       map[model.SellerCode]decimal.Decimal
	DefaultRate decimal.Decimal
}

// NewCalculator builds a calculator from a raw rate table, normalizing seller
// codes and rejecting negative rates.
func NewCalculator(rates map[string]float64, defaultRate float64) (*Calculator, error) {
	if defaultRate < 0 {
		return nil, common.NewValidationError(nil, "default commission rate must not be negative: %v", defaultRate)
	}
	c := &Calculator{
		Rates:       make(map[model.SellerCode]decimal.Decimal, len(rates)),
		DefaultRate: decimal.NewFromFloat(defaultRate),
	}
	for raw, rate := range rates {
		seller := model.NormalizeSeller(raw)
		if seller.IsZero() {
			return nil, common.NewValidationError(nil, "commission rate configured for an empty seller code")
		}
		if rate < 0 {
			return nil, common.NewValidationError(nil, "commission rate for %s must not be negative: %v", seller, rate)
		}
		c.Rates[seller] = decimal.NewFromFloat(rate)
	}
	return c, nil
}

// RateFor returns the percentage applied to a seller.
func (c *Calculator) RateFor(seller model.SellerCode) decimal.Decimal {
	if rate, ok := c.Rates[seller]; ok {
		return rate
	}
	return c.DefaultRate
}

// Eligible reports whether an invoice enters the commission base. Dropped and
// cancelled invoices never do, and neither does anything ever flagged as an
// orphan return, whatever its resolution.
func Eligible(inv *model.ReconciledInvoice) bool {
	return !inv.Dropped && !inv.Cancelled && !inv.HasKind(model.KindOrphanReturn)
}

// Compute returns one line per seller, sorted by seller code, and the total
// commission. It does not modify the report.
func (c *Calculator) Compute(report *model.MonthlyReport) ([]model.CommissionLine, decimal.Decimal) {
	type acc struct {
		gross   decimal.Decimal
		returns decimal.Decimal
	}
	bySeller := make(map[model.SellerCode]*acc)
	add := func(seller model.SellerCode, amount decimal.Decimal, isReturn bool) {
		if seller.IsZero() {
			return
		}
		a, ok := bySeller[seller]
		if !ok {
			a = &acc{}
			bySeller[seller] = a
		}
		if isReturn || amount.IsNegative() {
			a.returns = a.returns.Add(amount.Abs())
		} else {
			a.gross = a.gross.Add(amount)
		}
	}

	for i := range report.Invoices {
		inv := &report.Invoices[i]
		if !Eligible(inv) {
			continue
		}
		add(inv.AttributedSeller(), inv.Amount, inv.Type == model.TypeReturn)
	}
	for _, sale := range report.NoInvoiceSales {
		add(model.NormalizeSeller(string(sale.Seller)), sale.Amount, false)
	}

	sellers := make([]model.SellerCode, 0, len(bySeller))
	for s := range bySeller {
		sellers = append(sellers, s)
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i] < sellers[j] })

	lines := make([]model.CommissionLine, 0, len(sellers))
	total := decimal.Zero
	for _, s := range sellers {
		a := bySeller[s]
		rate := c.RateFor(s)
		base := a.gross.Sub(a.returns)
		amount := base.Mul(rate).Div(hundred).Round(2)
		lines = append(lines, model.CommissionLine{
			Seller:     s,
			GrossSales: a.gross,
			Returns:    a.returns,
			Base:       base,
			Rate:       rate,
			Commission: amount,
		})
		total = total.Add(amount)
	}

	return lines, total
}
