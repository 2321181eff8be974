package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial report schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS reports (
					period TEXT PRIMARY KEY,
					totals TEXT NOT NULL DEFAULT '{}',
					resolved_divergences INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS report_invoices (
					period TEXT NOT NULL,
					invoice_key TEXT NOT NULL,
					position INTEGER NOT NULL,
					invoice_type TEXT NOT NULL,
					amount TEXT NOT NULL,
					effective_date DATETIME,
					payment_date DATETIME,
					emission_date DATETIME,
					movement_seller TEXT,
					xml_seller TEXT,
					corrected_seller TEXT,
					final_seller TEXT,
					divergence_status TEXT NOT NULL,
					divergence_reason TEXT,
					divergence_kinds TEXT,
					severity TEXT,
					buyer TEXT,
					note TEXT,
					original_key TEXT,
					payment_method TEXT,
					has_movement BOOLEAN DEFAULT 0,
					has_xml BOOLEAN DEFAULT 0,
					cancelled BOOLEAN DEFAULT 0,
					dropped BOOLEAN DEFAULT 0,
					PRIMARY KEY (period, invoice_key),
					FOREIGN KEY (period) REFERENCES reports(period) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_report_invoices_status ON report_invoices(period, divergence_status)`,

				`CREATE TABLE IF NOT EXISTS no_invoice_sales (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					period TEXT NOT NULL,
					position INTEGER NOT NULL,
					sale_date DATETIME,
					amount TEXT NOT NULL,
					seller TEXT,
					payment_method TEXT,
					description TEXT,
					FOREIGN KEY (period) REFERENCES reports(period) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_no_invoice_sales_period ON no_invoice_sales(period)`,

				`CREATE TABLE IF NOT EXISTS expenses (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					period TEXT NOT NULL,
					position INTEGER NOT NULL,
					expense_date DATETIME,
					amount TEXT NOT NULL,
					payment_method TEXT,
					description TEXT,
					FOREIGN KEY (period) REFERENCES reports(period) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_expenses_period ON expenses(period)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add closing state and ledger",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS closing_states (
					period TEXT PRIMARY KEY,
					status TEXT NOT NULL DEFAULT 'IN_PROGRESS',
					summary TEXT,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS closing_checklist (
					period TEXT NOT NULL,
					flag TEXT NOT NULL,
					value BOOLEAN NOT NULL DEFAULT 0,
					PRIMARY KEY (period, flag),
					FOREIGN KEY (period) REFERENCES closing_states(period) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS closing_timeline (
					id TEXT PRIMARY KEY,
					period TEXT NOT NULL,
					at DATETIME NOT NULL,
					kind TEXT NOT NULL,
					flag TEXT,
					message TEXT,
					FOREIGN KEY (period) REFERENCES closing_states(period) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_closing_timeline_period ON closing_timeline(period, at)`,

				`CREATE TABLE IF NOT EXISTS ledger_entries (
					id TEXT PRIMARY KEY,
					period TEXT NOT NULL,
					source TEXT NOT NULL,
					source_key TEXT NOT NULL,
					seller TEXT,
					payment_method TEXT,
					amount TEXT NOT NULL,
					entry_date DATETIME,
					created_at DATETIME NOT NULL,
					is_locked BOOLEAN DEFAULT 0
				)`,
				`CREATE INDEX idx_ledger_entries_period ON ledger_entries(period)`,

				`CREATE TABLE IF NOT EXISTS ledger_locks (
					period TEXT PRIMARY KEY,
					locked_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add checkpoint metadata table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS checkpoint_metadata (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					description TEXT,
					file_size INTEGER,
					row_counts TEXT,
					schema_version INTEGER,
					is_auto BOOLEAN DEFAULT 0
				)`,
				`CREATE INDEX idx_checkpoint_metadata_created_at ON checkpoint_metadata(created_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
