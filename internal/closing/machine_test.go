package closing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/commission"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/ledger"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/Veraticus/conciliador/internal/service"
	"github.com/Veraticus/conciliador/internal/testutil"
)

const period model.PeriodID = "2024-03"

var fixedNow = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

// failingStates wraps a real closing store and lets tests fail the final
// state write.
type failingStates struct {
	service.ClosingStore
	mock.Mock
}

func (f *failingStates) SaveClosingState(ctx context.Context, state *model.ClosingState) error {
	args := f.Called(ctx, state)
	return args.Error(0)
}

func cleanReport() *model.MonthlyReport {
	return testutil.NewReport(period).
		WithInvoice(
			testutil.NewInvoice("1").Seller("A").Amount("1000").Build(),
			testutil.NewInvoice("2").Seller("A").Amount("100").Return("1").Build(),
		).
		WithNoInvoiceSale("B", "50", model.PaymentCash).
		Build()
}

func newMachine(t *testing.T, reports ...*model.MonthlyReport) (*Machine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, reports...)
	calc, err := commission.NewCalculator(map[string]float64{"A": 4.5}, 2)
	require.NoError(t, err)
	m := NewMachine(db.Storage, db.Storage, ledger.NewService(db.Storage), calc, WithClock(func() time.Time { return fixedNow }))
	return m, db
}

func TestStateIsCreatedLazily(t *testing.T) {
	m, _ := newMachine(t)
	state, err := m.State(context.Background(), period)
	require.NoError(t, err)
	assert.Equal(t, model.ClosingInProgress, state.Status)
	assert.Len(t, state.Checklist, len(model.ChecklistFlags))
}

func TestSetFlagRecordsMilestoneOnce(t *testing.T) {
	m, db := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.SetFlag(ctx, period, model.FlagMovementImported, true))
	require.NoError(t, m.SetFlag(ctx, period, model.FlagMovementImported, true))
	require.NoError(t, m.SetFlag(ctx, period, model.FlagMovementImported, false))

	state := db.MustLoadClosingState(period)
	assert.False(t, state.Checklist[model.FlagMovementImported])
	require.Len(t, state.Timeline, 1)
	assert.Equal(t, model.EventMilestone, state.Timeline[0].Kind)
	assert.Equal(t, model.FlagMovementImported, state.Timeline[0].Flag)
}

func TestSetFlagRejectsUnknownFlag(t *testing.T) {
	m, _ := newMachine(t)
	err := m.SetFlag(context.Background(), period, "shipped", true)
	assert.True(t, errors.Is(err, ErrUnknownFlag))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestCloseBlockedByDivergences(t *testing.T) {
	report := testutil.NewReport(period).
		WithInvoice(
			testutil.NewInvoice("1").Seller("A").Build(),
			testutil.NewInvoice("2").SellerMismatch("A", "B").Build(),
		).
		Build()
	m, db := newMachine(t, report)
	ctx := context.Background()

	_, err := m.Close(ctx, period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.True(t, errors.Is(err, ErrDivergencesPending))
	assert.Contains(t, err.Error(), "1 divergence")

	locked, err := db.Storage.IsLedgerLocked(ctx, period)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestCloseWithoutReport(t *testing.T) {
	m, _ := newMachine(t)
	_, err := m.Close(context.Background(), period)
	assert.True(t, errors.Is(err, ErrNoReport))
}

func TestCloseProducesIndependentSnapshot(t *testing.T) {
	report := cleanReport()
	m, db := newMachine(t, report)
	ctx := context.Background()

	state, err := m.Close(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, model.ClosingClosed, state.Status)
	require.NotNil(t, state.ConsolidatedSummary)

	expected := reconcile.CalculateSummary(db.MustLoadReport(period))
	got := state.ConsolidatedSummary.Summary
	assert.True(t, expected.NetTotal.Equal(got.NetTotal))
	assert.True(t, expected.GrossSales.Equal(got.GrossSales))
	assert.True(t, expected.Returns.Equal(got.Returns))
	assert.Equal(t, expected.InvoiceCount, got.InvoiceCount)

	// A: (1000 - 100) * 4.5% = 40.5, B: 50 * 2% = 1
	assert.True(t, decimal.RequireFromString("41.5").Equal(state.ConsolidatedSummary.CommissionTotal))
	assert.Equal(t, fixedNow, state.ConsolidatedSummary.GeneratedAt)

	locked, err := db.Storage.IsLedgerLocked(ctx, period)
	require.NoError(t, err)
	assert.True(t, locked)

	stored := db.MustLoadClosingState(period)
	assert.True(t, stored.IsClosed())
	require.NotNil(t, stored.ConsolidatedSummary)
	assert.True(t, got.NetTotal.Equal(stored.ConsolidatedSummary.Summary.NetTotal))
	require.NotEmpty(t, stored.Timeline)
	assert.Equal(t, model.EventClose, stored.Timeline[len(stored.Timeline)-1].Kind)
}

func TestCloseTwiceFails(t *testing.T) {
	m, _ := newMachine(t, cleanReport())
	ctx := context.Background()

	_, err := m.Close(ctx, period)
	require.NoError(t, err)

	_, err = m.Close(ctx, period)
	assert.True(t, errors.Is(err, ErrPeriodClosed))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestClosedPeriodIgnoresFlagsAndRejectsEdits(t *testing.T) {
	m, db := newMachine(t, cleanReport())
	ctx := context.Background()

	_, err := m.Close(ctx, period)
	require.NoError(t, err)

	require.NoError(t, m.SetFlag(ctx, period, model.FlagValidated, true))
	assert.False(t, db.MustLoadClosingState(period).Checklist[model.FlagValidated])

	err = m.EnsureOpen(ctx, period)
	assert.True(t, errors.Is(err, ErrPeriodClosed))
}

func TestReopenThenCloseRecomputes(t *testing.T) {
	m, db := newMachine(t, cleanReport())
	ctx := context.Background()

	first, err := m.Close(ctx, period)
	require.NoError(t, err)

	reopened, err := m.Reopen(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, model.ClosingInProgress, reopened.Status)
	assert.Nil(t, reopened.ConsolidatedSummary)
	assert.NoError(t, m.EnsureOpen(ctx, period))

	stored := db.MustLoadClosingState(period)
	assert.Nil(t, stored.ConsolidatedSummary)
	assert.Equal(t, model.EventReopen, stored.Timeline[len(stored.Timeline)-1].Kind)

	locked, err := db.Storage.IsLedgerLocked(ctx, period)
	require.NoError(t, err)
	assert.False(t, locked)

	// Edit data while open.
	report := db.MustLoadReport(period)
	report.Invoices = append(report.Invoices, testutil.NewInvoice("3").Seller("A").Amount("200").Build())
	require.NoError(t, db.Storage.SaveReport(ctx, report))

	second, err := m.Close(ctx, period)
	require.NoError(t, err)
	assert.False(t, first.ConsolidatedSummary.Summary.NetTotal.Equal(second.ConsolidatedSummary.Summary.NetTotal))
	assert.True(t, decimal.NewFromInt(1150).Equal(second.ConsolidatedSummary.Summary.NetTotal))
}

func TestCloseFailureUnlocksLedger(t *testing.T) {
	db := testutil.SetupTestDB(t, cleanReport())
	ctx := context.Background()

	states := &failingStates{ClosingStore: db.Storage}
	states.On("SaveClosingState", mock.Anything, mock.Anything).
		Return(common.NewPersistenceError("save closing state", errors.New("disk I/O error")))

	calc, err := commission.NewCalculator(nil, 1)
	require.NoError(t, err)
	m := NewMachine(db.Storage, states, ledger.NewService(db.Storage), calc)

	_, err = m.Close(ctx, period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))

	locked, err := db.Storage.IsLedgerLocked(ctx, period)
	require.NoError(t, err)
	assert.False(t, locked)

	state, err := m.State(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, model.ClosingInProgress, state.Status)
	states.AssertExpectations(t)
}

func TestReopenFailureKeepsLedgerLocked(t *testing.T) {
	m, db := newMachine(t, cleanReport())
	ctx := context.Background()

	_, err := m.Close(ctx, period)
	require.NoError(t, err)

	states := &failingStates{ClosingStore: db.Storage}
	states.On("SaveClosingState", mock.Anything, mock.Anything).
		Return(common.NewPersistenceError("save closing state", errors.New("disk I/O error")))

	calc, err := commission.NewCalculator(nil, 1)
	require.NoError(t, err)
	failing := NewMachine(db.Storage, states, ledger.NewService(db.Storage), calc)

	_, err = failing.Reopen(ctx, period)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))

	locked, err := db.Storage.IsLedgerLocked(ctx, period)
	require.NoError(t, err)
	assert.True(t, locked)

	state, err := m.State(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, model.ClosingClosed, state.Status)
	states.AssertExpectations(t)
}

func TestSimulateDoesNotChangeState(t *testing.T) {
	m, db := newMachine(t, cleanReport())
	ctx := context.Background()

	preview, err := m.Simulate(ctx, period)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("41.5").Equal(preview.CommissionTotal))
	require.Len(t, preview.Commissions, 2)

	_, err = db.Storage.LoadClosingState(ctx, period)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestPreCloseChecklist(t *testing.T) {
	report := testutil.NewReport(period).
		WithInvoice(testutil.NewInvoice("1").SellerMismatch("A", "B").Build()).
		Build()
	m, _ := newMachine(t, report)
	ctx := context.Background()

	items, err := m.PreCloseChecklist(ctx, period)
	require.NoError(t, err)
	assert.True(t, Blocked(items))
	assert.Contains(t, items, model.CheckItem{Status: model.CheckBlocked, Message: "1 divergence(s) pending"})
	assert.Contains(t, items, model.CheckItem{Status: model.CheckBlocked, Message: "Movement spreadsheet not imported"})
	assert.Contains(t, items, model.CheckItem{Status: model.CheckBlocked, Message: "Invoice XMLs not imported"})

	require.NoError(t, m.SetFlag(ctx, period, model.FlagMovementImported, true))
	items, err = m.PreCloseChecklist(ctx, period)
	require.NoError(t, err)
	assert.Contains(t, items, model.CheckItem{Status: model.CheckBlocked, Message: "Invoice XMLs not imported"})

	require.NoError(t, m.SetFlag(ctx, period, model.FlagInvoicesImported, true))
	require.NoError(t, m.SetFlag(ctx, period, model.FlagCommissionComputed, true))

	items, err = m.PreCloseChecklist(ctx, period)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.True(t, Blocked(items))
}
