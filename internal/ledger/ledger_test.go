package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

type mockLedgerStore struct {
	mock.Mock
}

func (m *mockLedgerStore) IngestLedgerEvents(ctx context.Context, period model.PeriodID, entries []model.LedgerEntry) error {
	args := m.Called(ctx, period, entries)
	return args.Error(0)
}

func (m *mockLedgerStore) ClearLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *mockLedgerStore) LockLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *mockLedgerStore) UnlockLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *mockLedgerStore) IsLedgerLocked(ctx context.Context, period model.PeriodID) (bool, error) {
	args := m.Called(ctx, period)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedgerStore) LedgerEntries(ctx context.Context, period model.PeriodID) ([]model.LedgerEntry, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	entries, ok := args.Get(0).([]model.LedgerEntry)
	if !ok {
		return nil, args.Error(1)
	}
	return entries, args.Error(1)
}

func sampleReport() *model.MonthlyReport {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	report := model.NewMonthlyReport("2024-03")
	report.Invoices = []model.ReconciledInvoice{
		{Key: "1", FinalSeller: "A", Amount: decimal.NewFromInt(100), PaymentMethod: model.PaymentPix, EffectiveDate: d, DivergenceStatus: model.StatusOK},
		{Key: "2", FinalSeller: "B", Amount: decimal.NewFromInt(-20), PaymentMethod: model.PaymentPix, EffectiveDate: d, Type: model.TypeReturn, DivergenceStatus: model.StatusOK},
		{Key: "3", FinalSeller: "A", Amount: decimal.NewFromInt(500), Dropped: true},
		{Key: "4", FinalSeller: "A", Amount: decimal.NewFromInt(-70), Cancelled: true},
	}
	report.NoInvoiceSales = []model.NoInvoiceSale{{Seller: "A", Amount: decimal.NewFromInt(30), PaymentMethod: model.PaymentCash, Date: d.AddDate(0, 0, 1)}}
	report.Expenses = []model.ExpenseEntry{{Amount: decimal.NewFromInt(15), PaymentMethod: model.PaymentCash, Date: d}}
	return report
}

func TestDerive(t *testing.T) {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	entries := Derive(sampleReport(), now)

	require.Len(t, entries, 4)
	assert.Equal(t, model.SourceInvoice, entries[0].Source)
	assert.Equal(t, "1", entries[0].SourceKey)
	assert.Equal(t, model.SourceNoInvoice, entries[2].Source)
	assert.Equal(t, model.SourceExpense, entries[3].Source)
	assert.True(t, decimal.NewFromInt(-15).Equal(entries[3].Amount))

	ids := map[string]bool{}
	for _, e := range entries {
		assert.Equal(t, model.PeriodID("2024-03"), e.Period)
		assert.Equal(t, now, e.CreatedAt)
		assert.NotEmpty(t, e.ID)
		ids[e.ID] = true
	}
	assert.Len(t, ids, 4)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	store := new(mockLedgerStore)
	store.On("IsLedgerLocked", ctx, model.PeriodID("2024-03")).Return(false, nil)
	store.On("IngestLedgerEvents", ctx, model.PeriodID("2024-03"), mock.MatchedBy(func(e []model.LedgerEntry) bool {
		return len(e) == 4
	})).Return(nil)

	require.NoError(t, NewService(store).Ingest(ctx, sampleReport()))
	store.AssertExpectations(t)
}

func TestIngestLockedPeriod(t *testing.T) {
	ctx := context.Background()
	store := new(mockLedgerStore)
	store.On("IsLedgerLocked", ctx, model.PeriodID("2024-03")).Return(true, nil)

	err := NewService(store).Ingest(ctx, sampleReport())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodLocked))
	assert.True(t, errors.Is(err, common.ErrValidation))
	store.AssertNotCalled(t, "IngestLedgerEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := new(mockLedgerStore)
	store.On("IsLedgerLocked", ctx, model.PeriodID("2024-03")).Return(false, nil)
	store.On("IngestLedgerEvents", ctx, model.PeriodID("2024-03"), mock.Anything).
		Return(common.NewPersistenceError("ingest", errors.New("disk full")))

	err := NewService(store).Ingest(ctx, sampleReport())
	assert.True(t, errors.Is(err, common.ErrPersistence))
}

func TestAggregate(t *testing.T) {
	totals := Aggregate(Derive(sampleReport(), time.Now()))

	assert.Equal(t, 4, totals.Entries)
	assert.True(t, decimal.NewFromInt(95).Equal(totals.Total), "total %s", totals.Total)
	assert.True(t, decimal.NewFromInt(130).Equal(totals.BySeller["A"]))
	assert.True(t, decimal.NewFromInt(-20).Equal(totals.BySeller["B"]))
	assert.True(t, decimal.NewFromInt(80).Equal(totals.ByMethod[model.PaymentPix]))
	assert.True(t, decimal.NewFromInt(15).Equal(totals.ByMethod[model.PaymentCash]))
	assert.Equal(t, []string{"2024-03-05", "2024-03-06"}, totals.Days())
	assert.Equal(t, []model.SellerCode{"A", "B"}, totals.Sellers())
}
