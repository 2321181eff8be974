// Package ledger derives the per-period event log from a reconciled report and
// guards it with the closing lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/Veraticus/conciliador/internal/service"
)

// ErrPeriodLocked is returned when a locked period would be rewritten.
var ErrPeriodLocked = errors.New("ledger period is locked")

// Service owns ledger ingestion and locking for every period.
type Service struct {
	store service.LedgerStore
	now   func() time.Time
}

// NewService creates a ledger service backed by store.
func NewService(store service.LedgerStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Derive builds one entry per counted invoice, no-invoice sale and expense.
func Derive(report *model.MonthlyReport, now time.Time) []model.LedgerEntry {
	entries := make([]model.LedgerEntry, 0, len(report.Invoices)+len(report.NoInvoiceSales)+len(report.Expenses))

	for i := range report.Invoices {
		inv := &report.Invoices[i]
		if !reconcile.Counts(inv) {
			continue
		}
		entries = append(entries, model.LedgerEntry{
			ID:            uuid.NewString(),
			Period:        report.Period,
			Source:        model.SourceInvoice,
			SourceKey:     inv.Key,
			Seller:        inv.AttributedSeller(),
			PaymentMethod: inv.PaymentMethod,
			Amount:        inv.Amount,
			Date:          inv.EffectiveDate,
			CreatedAt:     now,
		})
	}

	for i, sale := range report.NoInvoiceSales {
		entries = append(entries, model.LedgerEntry{
			ID:            uuid.NewString(),
			Period:        report.Period,
			Source:        model.SourceNoInvoice,
			SourceKey:     fmt.Sprintf("sale-%d", i+1),
			Seller:        sale.Seller,
			PaymentMethod: sale.PaymentMethod,
			Amount:        sale.Amount,
			Date:          sale.Date,
			CreatedAt:     now,
		})
	}

	for i, exp := range report.Expenses {
		entries = append(entries, model.LedgerEntry{
			ID:            uuid.NewString(),
			Period:        report.Period,
			Source:        model.SourceExpense,
			SourceKey:     fmt.Sprintf("expense-%d", i+1),
			PaymentMethod: exp.PaymentMethod,
			Amount:        exp.Contribution(),
			Date:          exp.Date,
			CreatedAt:     now,
		})
	}

	return entries
}

// Ingest replaces the ledger of the report's period with freshly derived
// entries.
func (s *Service) Ingest(ctx context.Context, report *model.MonthlyReport) error {
	locked, err := s.store.IsLedgerLocked(ctx, report.Period)
	if err != nil {
		return fmt.Errorf("failed to check ledger lock: %w", err)
	}
	if locked {
		return common.NewValidationError(ErrPeriodLocked, "ledger for %s is locked; reopen the period first", report.Period)
	}

	entries := Derive(report, s.now())
	if err := s.store.IngestLedgerEvents(ctx, report.Period, entries); err != nil {
		return fmt.Errorf("failed to ingest ledger events: %w", err)
	}

	slog.Info("Ingested ledger events", "period", report.Period, "entries", len(entries))
	return nil
}

// Lock freezes the period's ledger.
func (s *Service) Lock(ctx context.Context, period model.PeriodID) error {
	if err := s.store.LockLedgerPeriod(ctx, period); err != nil {
		return fmt.Errorf("failed to lock ledger: %w", err)
	}
	return nil
}

// Unlock releases the period's ledger.
func (s *Service) Unlock(ctx context.Context, period model.PeriodID) error {
	if err := s.store.UnlockLedgerPeriod(ctx, period); err != nil {
		return fmt.Errorf("failed to unlock ledger: %w", err)
	}
	return nil
}

// IsLocked reports whether the period's ledger is locked.
func (s *Service) IsLocked(ctx context.Context, period model.PeriodID) (bool, error) {
	return s.store.IsLedgerLocked(ctx, period)
}

// Entries returns the stored entries of a period.
func (s *Service) Entries(ctx context.Context, period model.PeriodID) ([]model.LedgerEntry, error) {
	return s.store.LedgerEntries(ctx, period)
}
