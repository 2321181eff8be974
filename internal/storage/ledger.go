package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/conciliador/internal/model"
)

func isLocked(ctx context.Context, q queryable, period model.PeriodID) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_locks WHERE period = ?`, period).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to read ledger lock: %w", err)
	}
	return n > 0, nil
}

func refuseLocked(ctx context.Context, q queryable, period model.PeriodID) error {
	locked, err := isLocked(ctx, q, period)
	if err != nil {
		return err
	}
	if locked {
		return invalid(ErrLedgerLocked, "%s", period)
	}
	return nil
}

// IngestLedgerEvents replaces every entry of the period. A locked period is
// refused.
func (s *SQLiteStorage) IngestLedgerEvents(ctx context.Context, period model.PeriodID, entries []model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}
	if err := validateLedgerEntries(period, entries); err != nil {
		return err
	}

	return s.withTx(ctx, "ingest ledger events", func(tx *sql.Tx) error {
		if err := refuseLocked(ctx, tx, period); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE period = ?`, period); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ledger_entries (id, period, source, source_key, seller, payment_method, amount, entry_date, created_at, is_locked)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare ledger insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				e.ID, period, e.Source, e.SourceKey, e.Seller, e.PaymentMethod, e.Amount, e.Date, e.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert ledger entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// ClearLedgerPeriod deletes every entry of an unlocked period.
func (s *SQLiteStorage) ClearLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}

	return s.withTx(ctx, "clear ledger", func(tx *sql.Tx) error {
		if err := refuseLocked(ctx, tx, period); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE period = ?`, period)
		return err
	})
}

// LockLedgerPeriod marks the period and its entries locked. Locking twice is
// harmless.
func (s *SQLiteStorage) LockLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	return s.setLock(ctx, period, true)
}

// UnlockLedgerPeriod releases the lock of a period.
func (s *SQLiteStorage) UnlockLedgerPeriod(ctx context.Context, period model.PeriodID) error {
	return s.setLock(ctx, period, false)
}

func (s *SQLiteStorage) setLock(ctx context.Context, period model.PeriodID, locked bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}

	op := "unlock ledger"
	if locked {
		op = "lock ledger"
	}
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		if locked {
			_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO ledger_locks (period) VALUES (?)`, period)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM ledger_locks WHERE period = ?`, period)
		}
		if err != nil {
			return fmt.Errorf("failed to update ledger lock: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE ledger_entries SET is_locked = ? WHERE period = ?`, locked, period)
		return err
	})
}

// IsLedgerLocked reports whether a period is locked.
func (s *SQLiteStorage) IsLedgerLocked(ctx context.Context, period model.PeriodID) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	locked, err := isLocked(ctx, s.db, period)
	return locked, wrapErr("read ledger lock", err)
}

// LedgerEntries returns the entries of a period in date order.
func (s *SQLiteStorage) LedgerEntries(ctx context.Context, period model.PeriodID) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period, source, source_key, seller, payment_method, amount, entry_date, created_at, is_locked
		FROM ledger_entries
		WHERE period = ?
		ORDER BY entry_date, rowid
	`, period)
	if err != nil {
		return nil, wrapErr("read ledger", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Period, &e.Source, &e.SourceKey, &e.Seller, &e.PaymentMethod,
			&e.Amount, &e.Date, &e.CreatedAt, &e.IsLocked); err != nil {
			return nil, wrapErr("read ledger", err)
		}
		entries = append(entries, e)
	}
	return entries, wrapErr("read ledger", rows.Err())
}
