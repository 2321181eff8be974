package model

import "github.com/shopspring/decimal"

// CommissionLine is the derived commission record for one seller.
type CommissionLine struct {
	Seller     SellerCode      `json:"seller"`
	GrossSales decimal.Decimal `json:"gross_sales"`
	Returns    decimal.Decimal `json:"returns"`
	Base       decimal.Decimal `json:"base"`
	Rate       decimal.Decimal `json:"rate"`
	Commission decimal.Decimal `json:"commission"`
}
