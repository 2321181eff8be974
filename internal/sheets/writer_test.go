package sheets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/Veraticus/conciliador/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:        "test-client",
				ClientSecret:    "test-secret",
				RefreshToken:    "test-token",
				SpreadsheetName: "Fechamento",
				BatchSize:       100,
				RetryAttempts:   3,
				RetryDelay:      time.Second,
			},
		},
		{
			name: "oauth with token file",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				TokenFile:     "/tmp/token.json",
				SpreadsheetID: "abc",
				BatchSize:     100,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "abc",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
		},
		{
			name: "missing auth",
			config: Config{
				SpreadsheetID: "abc",
				BatchSize:     100,
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:      "test-client",
				RefreshToken:  "test-token",
				SpreadsheetID: "abc",
				BatchSize:     100,
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "abc",
				BatchSize:          100,
			},
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name: "invalid batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "abc",
			},
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "abc",
				BatchSize:          100,
				RetryDelay:         -time.Second,
			},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
		{
			name: "no spreadsheet target",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr: true,
			errMsg:  "spreadsheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "America/Sao_Paulo", cfg.TimeZone)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.True(t, cfg.EnableFormatting)

	cfg.ServiceAccountPath = "/key.json"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateWrapsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.False(t, cfg.UsesServiceAccount())
}

func closedFixture(t *testing.T) (*model.MonthlyReport, *model.ConsolidatedSummary) {
	t.Helper()
	report := testutil.NewReport("2024-03").
		WithInvoice(
			testutil.NewInvoice("2").Seller("ana").On(5).Build(),
			testutil.NewInvoice("1").Seller("bruno").Amount("50").Method(model.PaymentCash).Build(),
			testutil.NewInvoice("3").Seller("ana").Cancelled().Build(),
		).
		WithNoInvoiceSale("ana", "20", model.PaymentCash).
		WithExpense("10", model.PaymentCash).
		Build()

	snapshot := &model.ConsolidatedSummary{
		GeneratedAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		Summary:     reconcile.CalculateSummary(report),
		Commissions: []model.CommissionLine{{
			Seller:     "ANA",
			GrossSales: decimal.NewFromInt(120),
			Base:       decimal.NewFromInt(120),
			Rate:       decimal.RequireFromString("4.5"),
			Commission: decimal.RequireFromString("5.40"),
		}},
		CommissionTotal: decimal.RequireFromString("5.40"),
	}
	return report, snapshot
}

func TestPeriodTabs(t *testing.T) {
	report, snapshot := closedFixture(t)

	tabs := periodTabs(report, snapshot)
	names := make([]string, len(tabs))
	for i, tab := range tabs {
		names[i] = tab.Name
	}
	assert.Equal(t, []string{"2024-03 Resumo", "2024-03 Notas", "2024-03 Vendas sem nota", "2024-03 Despesas", "2024-03 Comissoes"}, names)
}

func TestFormatRequests(t *testing.T) {
	report, snapshot := closedFixture(t)
	tab := periodTabs(report, snapshot)[4]

	requests := formatRequests(42, tab, `"R$" #,##0.00`)
	// header + one per currency column + resize + freeze
	require.Len(t, requests, 1+len(tab.CurrencyColumns)+2)

	assert.Equal(t, int64(42), requests[0].RepeatCell.Range.SheetId)
	assert.Equal(t, int64(6), requests[0].RepeatCell.Range.EndColumnIndex)
	assert.Equal(t, `"R$" #,##0.00`, requests[1].RepeatCell.Cell.UserEnteredFormat.NumberFormat.Pattern)
	assert.Equal(t, int64(1), requests[len(requests)-1].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)
}

func TestWriter_PublishRequiresSnapshot(t *testing.T) {
	w := &Writer{logger: slog.Default(), config: DefaultConfig()}
	report, _ := closedFixture(t)

	_, err := w.Publish(context.Background(), report, nil)
	assert.ErrorIs(t, err, ErrNotClosed)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestQuoteRange(t *testing.T) {
	assert.Equal(t, "'2024-03 Resumo'!A1", quoteRange("2024-03 Resumo", "A1"))
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}

	require.NoError(t, SaveToken(path, token))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)

	_, err = LoadToken("")
	assert.Error(t, err)
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	handler := callbackHandler("s1", codes, errs)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, codes)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Error(t, <-errs)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", <-codes)
}

func TestMockWriter(t *testing.T) {
	report, snapshot := closedFixture(t)
	m := NewMockWriter()

	id, err := m.Publish(context.Background(), report, snapshot)
	require.NoError(t, err)
	assert.Equal(t, "mock-spreadsheet", id)

	m.SetPublishError(errors.New("quota"))
	_, err = m.Publish(context.Background(), report, snapshot)
	assert.EqualError(t, err, "quota")
	assert.Equal(t, 2, m.CallCount())
	assert.Same(t, snapshot, m.LastSnapshot)
}

func TestClassifyAPIError(t *testing.T) {
	assert.NoError(t, classifyAPIError(nil))

	limited := classifyAPIError(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.ErrorIs(t, limited, common.ErrRateLimit)
	assert.True(t, common.IsRetryable(limited))

	forbidden := classifyAPIError(&googleapi.Error{Code: http.StatusForbidden})
	assert.False(t, common.IsRetryable(forbidden))
	var apiErr *googleapi.Error
	assert.True(t, errors.As(forbidden, &apiErr))

	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	assert.Equal(t, error(unavailable), classifyAPIError(unavailable))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classifyAPIError(plain))
}
