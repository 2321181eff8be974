// Package service defines the collaborator interfaces the reconciliation core
// depends on. Implementations live in storage, movement, nfe and sheets.
package service

import (
	"context"
	"io"

	"github.com/Veraticus/conciliador/internal/model"
)

// MovementParser turns a cash/movement spreadsheet into normalized records.
type MovementParser interface {
	Parse(ctx context.Context, r io.Reader) (*model.MovementBatch, error)
}

// InvoiceParser turns one fiscal XML document into a normalized record.
type InvoiceParser interface {
	Parse(ctx context.Context, r io.Reader) (model.InvoiceXMLRecord, error)
}

// ReportStore persists monthly reports.
type ReportStore interface {
	// LoadReport returns common.ErrNotFound when the period has no report.
	LoadReport(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, error)
	SaveReport(ctx context.Context, report *model.MonthlyReport) error
	ListPeriods(ctx context.Context) ([]model.PeriodID, error)
}

// ClosingStore persists per-period closing state.
type ClosingStore interface {
	// LoadClosingState returns common.ErrNotFound before the first write.
	LoadClosingState(ctx context.Context, period model.PeriodID) (*model.ClosingState, error)
	SetChecklistFlag(ctx context.Context, period model.PeriodID, flag model.ChecklistFlag, value bool) error
	AppendTimelineEvent(ctx context.Context, period model.PeriodID, event model.TimelineEvent) error
	// SaveClosingState writes status, snapshot, checklist and any timeline
	// events not yet stored in a single transaction.
	SaveClosingState(ctx context.Context, state *model.ClosingState) error
}

// LedgerStore persists the derived per-period event log.
type LedgerStore interface {
	// IngestLedgerEvents replaces every entry of the period in one transaction.
	IngestLedgerEvents(ctx context.Context, period model.PeriodID, entries []model.LedgerEntry) error
	ClearLedgerPeriod(ctx context.Context, period model.PeriodID) error
	LockLedgerPeriod(ctx context.Context, period model.PeriodID) error
	UnlockLedgerPeriod(ctx context.Context, period model.PeriodID) error
	IsLedgerLocked(ctx context.Context, period model.PeriodID) (bool, error)
	LedgerEntries(ctx context.Context, period model.PeriodID) ([]model.LedgerEntry, error)
}

// ReportPublisher pushes a closed period somewhere outside the local store and
// returns an identifier of where it went.
type ReportPublisher interface {
	Publish(ctx context.Context, report *model.MonthlyReport, snapshot *model.ConsolidatedSummary) (string, error)
}

// Storage is the complete persistence layer.
type Storage interface {
	ReportStore
	ClosingStore
	LedgerStore

	Migrate(ctx context.Context) error
	Close() error
}
