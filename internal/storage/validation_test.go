package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

func TestValidateString(t *testing.T) {
	assert.NoError(t, validateString("x", "p"))
	assert.ErrorIs(t, validateString("  ", "p"), ErrEmptyString)
}

func TestValidateContext(t *testing.T) {
	assert.NoError(t, validateContext(context.Background()))
	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, validateContext(nil), ErrNilContext)
}

func TestValidateReport(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.MonthlyReport)
		wantErr error
	}{
		{"valid", func(*model.MonthlyReport) {}, nil},
		{"empty key", func(r *model.MonthlyReport) { r.Invoices[0].Key = " " }, ErrInvalidReport},
		{"duplicate key", func(r *model.MonthlyReport) { r.Invoices[1].Key = r.Invoices[0].Key }, ErrDuplicateInvoice},
		{"resolved without seller", func(r *model.MonthlyReport) { r.Invoices[0].FinalSeller = "" }, ErrInvalidReport},
		{"dropped without seller", func(r *model.MonthlyReport) {
			r.Invoices[0].FinalSeller = ""
			r.Invoices[0].Dropped = true
		}, nil},
		{"bad period", func(r *model.MonthlyReport) { r.Period = "2024-13" }, ErrInvalidPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testReport()
			tt.mutate(r)
			err := validateReport(r)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.True(t, errors.Is(err, common.ErrValidation))
		})
	}

	assert.ErrorIs(t, validateReport(nil), ErrNilParameter)
}

func TestWrapErr(t *testing.T) {
	assert.Nil(t, wrapErr("op", nil))
	assert.True(t, errors.Is(wrapErr("op", errors.New("boom")), common.ErrPersistence))

	notFound := wrapErr("op", common.ErrNotFound)
	assert.True(t, errors.Is(notFound, common.ErrNotFound))
	assert.False(t, errors.Is(notFound, common.ErrPersistence))
}
