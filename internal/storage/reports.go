package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// SaveReport replaces the stored report of a period with the given one.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.MonthlyReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	totals, err := json.Marshal(report.TotalsByMethod)
	if err != nil {
		return fmt.Errorf("failed to marshal totals: %w", err)
	}

	return s.withTx(ctx, "save report", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reports (period, totals, resolved_divergences, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(period) DO UPDATE SET
				totals = excluded.totals,
				resolved_divergences = excluded.resolved_divergences,
				updated_at = excluded.updated_at
		`, report.Period, string(totals), report.ResolvedDivergences, report.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert report: %w", err)
		}

		for _, table := range []string{"report_invoices", "no_invoice_sales", "expenses"} {
			// #nosec G202 - table names come from the fixed list above
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE period = ?", report.Period); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := insertInvoices(ctx, tx, report); err != nil {
			return err
		}
		if err := insertNoInvoiceSales(ctx, tx, report); err != nil {
			return err
		}
		return insertExpenses(ctx, tx, report)
	})
}

func insertInvoices(ctx context.Context, tx *sql.Tx, report *model.MonthlyReport) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_invoices (
			period, invoice_key, position, invoice_type, amount,
			effective_date, payment_date, emission_date,
			movement_seller, xml_seller, corrected_seller, final_seller,
			divergence_status, divergence_reason, divergence_kinds, severity,
			buyer, note, original_key, payment_method,
			has_movement, has_xml, cancelled, dropped
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare invoice insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range report.Invoices {
		inv := &report.Invoices[i]
		_, err := stmt.ExecContext(ctx,
			report.Period, inv.Key, i, inv.Type, inv.Amount,
			inv.EffectiveDate, inv.PaymentDate, inv.EmissionDate,
			inv.MovementSeller, inv.XMLSeller, inv.CorrectedSeller, inv.FinalSeller,
			inv.DivergenceStatus, inv.DivergenceReason, joinKinds(inv.DivergenceKinds), inv.Severity,
			inv.Buyer, inv.Note, inv.OriginalKey, inv.PaymentMethod,
			inv.HasMovement, inv.HasXML, inv.Cancelled, inv.Dropped,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice %s: %w", inv.Key, err)
		}
	}
	return nil
}

func insertNoInvoiceSales(ctx context.Context, tx *sql.Tx, report *model.MonthlyReport) error {
	for i, sale := range report.NoInvoiceSales {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO no_invoice_sales (period, position, sale_date, amount, seller, payment_method, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.Period, i, sale.Date, sale.Amount, sale.Seller, sale.PaymentMethod, sale.Description)
		if err != nil {
			return fmt.Errorf("failed to insert no-invoice sale %d: %w", i, err)
		}
	}
	return nil
}

func insertExpenses(ctx context.Context, tx *sql.Tx, report *model.MonthlyReport) error {
	for i, exp := range report.Expenses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO expenses (period, position, expense_date, amount, payment_method, description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, report.Period, i, exp.Date, exp.Amount, exp.PaymentMethod, exp.Description)
		if err != nil {
			return fmt.Errorf("failed to insert expense %d: %w", i, err)
		}
	}
	return nil
}

// LoadReport returns the stored report of a period.
func (s *SQLiteStorage) LoadReport(ctx context.Context, period model.PeriodID) (*model.MonthlyReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	report := model.NewMonthlyReport(period)
	var totals string
	err := s.db.QueryRowContext(ctx, `
		SELECT totals, resolved_divergences, updated_at FROM reports WHERE period = ?
	`, period).Scan(&totals, &report.ResolvedDivergences, &report.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for %s: %w", period, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("load report", err)
	}

	if err := json.Unmarshal([]byte(totals), &report.TotalsByMethod); err != nil {
		return nil, wrapErr("load report", fmt.Errorf("failed to parse totals: %w", err))
	}
	if report.TotalsByMethod == nil {
		report.TotalsByMethod = make(map[model.PaymentMethod]decimal.Decimal)
	}

	if report.Invoices, err = s.loadInvoices(ctx, s.db, period); err != nil {
		return nil, wrapErr("load report", err)
	}
	if report.NoInvoiceSales, err = s.loadNoInvoiceSales(ctx, s.db, period); err != nil {
		return nil, wrapErr("load report", err)
	}
	if report.Expenses, err = s.loadExpenses(ctx, s.db, period); err != nil {
		return nil, wrapErr("load report", err)
	}

	return report, nil
}

func (s *SQLiteStorage) loadInvoices(ctx context.Context, q queryable, period model.PeriodID) ([]model.ReconciledInvoice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT invoice_key, invoice_type, amount,
			effective_date, payment_date, emission_date,
			movement_seller, xml_seller, corrected_seller, final_seller,
			divergence_status, divergence_reason, divergence_kinds, severity,
			buyer, note, original_key, payment_method,
			has_movement, has_xml, cancelled, dropped
		FROM report_invoices
		WHERE period = ?
		ORDER BY position
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.ReconciledInvoice
	for rows.Next() {
		var inv model.ReconciledInvoice
		var kinds string
		if err := rows.Scan(
			&inv.Key, &inv.Type, &inv.Amount,
			&inv.EffectiveDate, &inv.PaymentDate, &inv.EmissionDate,
			&inv.MovementSeller, &inv.XMLSeller, &inv.CorrectedSeller, &inv.FinalSeller,
			&inv.DivergenceStatus, &inv.DivergenceReason, &kinds, &inv.Severity,
			&inv.Buyer, &inv.Note, &inv.OriginalKey, &inv.PaymentMethod,
			&inv.HasMovement, &inv.HasXML, &inv.Cancelled, &inv.Dropped,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.DivergenceKinds = splitKinds(kinds)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *SQLiteStorage) loadNoInvoiceSales(ctx context.Context, q queryable, period model.PeriodID) ([]model.NoInvoiceSale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT sale_date, amount, seller, payment_method, description
		FROM no_invoice_sales
		WHERE period = ?
		ORDER BY position
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query no-invoice sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sales []model.NoInvoiceSale
	for rows.Next() {
		var sale model.NoInvoiceSale
		if err := rows.Scan(&sale.Date, &sale.Amount, &sale.Seller, &sale.PaymentMethod, &sale.Description); err != nil {
			return nil, fmt.Errorf("failed to scan no-invoice sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *SQLiteStorage) loadExpenses(ctx context.Context, q queryable, period model.PeriodID) ([]model.ExpenseEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT expense_date, amount, payment_method, description
		FROM expenses
		WHERE period = ?
		ORDER BY position
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []model.ExpenseEntry
	for rows.Next() {
		var exp model.ExpenseEntry
		if err := rows.Scan(&exp.Date, &exp.Amount, &exp.PaymentMethod, &exp.Description); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}

// ListPeriods returns every period with a stored report, oldest first.
func (s *SQLiteStorage) ListPeriods(ctx context.Context) ([]model.PeriodID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT period FROM reports ORDER BY period`)
	if err != nil {
		return nil, wrapErr("list periods", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []model.PeriodID
	for rows.Next() {
		var p model.PeriodID
		if err := rows.Scan(&p); err != nil {
			return nil, wrapErr("list periods", err)
		}
		periods = append(periods, p)
	}
	return periods, wrapErr("list periods", rows.Err())
}

func joinKinds(kinds []model.DivergenceKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func splitKinds(s string) []model.DivergenceKind {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	kinds := make([]model.DivergenceKind, len(parts))
	for i, p := range parts {
		kinds[i] = model.DivergenceKind(p)
	}
	return kinds
}
