package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidReport    = errors.New("invalid report")
	ErrInvalidState     = errors.New("invalid closing state")
	ErrInvalidLedger    = errors.New("invalid ledger entry")
	ErrLedgerLocked     = errors.New("ledger period is locked")
	ErrDuplicateInvoice = errors.New("duplicate invoice key")
)

// wrapErr classifies a store failure as a persistence error unless it already
// carries a more specific class.
func wrapErr(op string, err error) error {
	return common.NewPersistenceError(op, err)
}

func invalid(sentinel error, format string, args ...any) error {
	return common.NewValidationError(sentinel, "%s: %s", sentinel.Error(), fmt.Sprintf(format, args...))
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePeriod(period model.PeriodID) error {
	if _, err := model.ParsePeriod(string(period)); err != nil {
		return invalid(ErrInvalidPeriod, "%q", period)
	}
	return nil
}

// validateReport checks the report before it is written.
func validateReport(report *model.MonthlyReport) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if err := validatePeriod(report.Period); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(report.Invoices))
	for i := range report.Invoices {
		inv := &report.Invoices[i]
		if strings.TrimSpace(inv.Key) == "" {
			return invalid(ErrInvalidReport, "invoice at index %d has no key", i)
		}
		if _, dup := seen[inv.Key]; dup {
			return invalid(ErrDuplicateInvoice, "%s", inv.Key)
		}
		seen[inv.Key] = struct{}{}
		if inv.DivergenceStatus == model.StatusOK && !inv.Dropped && inv.FinalSeller.IsZero() {
			return invalid(ErrInvalidReport, "resolved invoice %s has no final seller", inv.Key)
		}
	}
	return nil
}

func validateClosingState(state *model.ClosingState) error {
	if state == nil {
		return fmt.Errorf("%w: closing state", ErrNilParameter)
	}
	if err := validatePeriod(state.Period); err != nil {
		return err
	}
	switch state.Status {
	case model.ClosingInProgress:
		if state.ConsolidatedSummary != nil {
			return invalid(ErrInvalidState, "open period %s carries a snapshot", state.Period)
		}
	case model.ClosingClosed:
		if state.ConsolidatedSummary == nil {
			return invalid(ErrInvalidState, "closed period %s has no snapshot", state.Period)
		}
	default:
		return invalid(ErrInvalidState, "unknown status %q", state.Status)
	}
	for flag := range state.Checklist {
		if !model.IsValidFlag(flag) {
			return invalid(ErrInvalidState, "unknown checklist flag %q", flag)
		}
	}
	return nil
}

func validateLedgerEntries(period model.PeriodID, entries []model.LedgerEntry) error {
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			return invalid(ErrInvalidLedger, "entry at index %d has no id", i)
		}
		if e.Period != period {
			return invalid(ErrInvalidLedger, "entry %s belongs to %s, not %s", e.ID, e.Period, period)
		}
	}
	return nil
}
