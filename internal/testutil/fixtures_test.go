package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/model"
)

func TestInvoiceBuilder(t *testing.T) {
	inv := NewInvoice("1").Seller("a").Amount("50").Return("0").Build()
	assert.Equal(t, model.TypeReturn, inv.Type)
	assert.True(t, decimal.NewFromInt(-50).Equal(inv.Amount))
	assert.Equal(t, model.SellerCode("A"), inv.FinalSeller)

	pending := NewInvoice("2").SellerMismatch("A", "B").Build()
	assert.True(t, pending.IsDivergent())
	assert.True(t, pending.FinalSeller.IsZero())
	assert.True(t, pending.HasKind(model.KindSellerMismatch))
}

func TestSetupTestDB(t *testing.T) {
	report := NewReport("2024-03").
		WithInvoice(NewInvoice("1").Seller("A").Build()).
		WithExpense("10", model.PaymentCash).
		Build()

	db := SetupTestDB(t, report)

	loaded := db.MustLoadReport("2024-03")
	require.Len(t, loaded.Invoices, 1)
	assert.True(t, decimal.NewFromInt(-10).Equal(loaded.TotalsByMethod[model.PaymentCash]))
}
