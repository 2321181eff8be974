// Package testutil provides test utilities for the conciliador project: an
// isolated in-memory database and fluent builders for reconciled data.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database seeded with reports.
// It is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewReport("2024-03").
//			WithInvoice(testutil.NewInvoice("1").Seller("A").Amount("100").Build()).
//			Build(),
//	)
func SetupTestDB(t *testing.T, reports ...*model.MonthlyReport) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Reports: reports})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Reports        []*model.MonthlyReport
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for _, r := range opts.Reports {
		if err := store.SaveReport(ctx, r); err != nil {
			t.Fatalf("failed to seed report %s: %v", r.Period, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustLoadReport returns the stored report of a period or fails the test.
func (db *TestDB) MustLoadReport(period model.PeriodID) *model.MonthlyReport {
	db.t.Helper()
	r, err := db.Storage.LoadReport(context.Background(), period)
	if err != nil {
		db.t.Fatalf("failed to load report %s: %v", period, err)
	}
	return r
}

// MustLoadClosingState returns the stored closing state or fails the test.
func (db *TestDB) MustLoadClosingState(period model.PeriodID) *model.ClosingState {
	db.t.Helper()
	s, err := db.Storage.LoadClosingState(context.Background(), period)
	if err != nil {
		db.t.Fatalf("failed to load closing state %s: %v", period, err)
	}
	return s
}
