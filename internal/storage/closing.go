package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

// LoadClosingState returns the stored closing state of a period.
func (s *SQLiteStorage) LoadClosingState(ctx context.Context, period model.PeriodID) (*model.ClosingState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	state := model.NewClosingState(period)
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT status, summary, updated_at FROM closing_states WHERE period = ?
	`, period).Scan(&state.Status, &summary, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("closing state for %s: %w", period, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("load closing state", err)
	}

	if summary.Valid && summary.String != "" {
		var snapshot model.ConsolidatedSummary
		if err := json.Unmarshal([]byte(summary.String), &snapshot); err != nil {
			return nil, wrapErr("load closing state", fmt.Errorf("failed to parse snapshot: %w", err))
		}
		state.ConsolidatedSummary = &snapshot
	}

	if err := s.loadChecklist(ctx, period, state); err != nil {
		return nil, wrapErr("load closing state", err)
	}
	if state.Timeline, err = s.loadTimeline(ctx, period); err != nil {
		return nil, wrapErr("load closing state", err)
	}

	return state, nil
}

func (s *SQLiteStorage) loadChecklist(ctx context.Context, period model.PeriodID, state *model.ClosingState) error {
	rows, err := s.db.QueryContext(ctx, `SELECT flag, value FROM closing_checklist WHERE period = ?`, period)
	if err != nil {
		return fmt.Errorf("failed to query checklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var flag model.ChecklistFlag
		var value bool
		if err := rows.Scan(&flag, &value); err != nil {
			return fmt.Errorf("failed to scan checklist flag: %w", err)
		}
		state.Checklist[flag] = value
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadTimeline(ctx context.Context, period model.PeriodID) ([]model.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, kind, flag, message
		FROM closing_timeline
		WHERE period = ?
		ORDER BY at, rowid
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		if err := rows.Scan(&e.ID, &e.At, &e.Kind, &e.Flag, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ensureClosingRow creates the IN_PROGRESS row of a period if it is missing.
func ensureClosingRow(ctx context.Context, q queryable, period model.PeriodID) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO closing_states (period, status, updated_at) VALUES (?, ?, ?)
	`, period, model.ClosingInProgress, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create closing state: %w", err)
	}
	return nil
}

func upsertFlag(ctx context.Context, q queryable, period model.PeriodID, flag model.ChecklistFlag, value bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO closing_checklist (period, flag, value) VALUES (?, ?, ?)
		ON CONFLICT(period, flag) DO UPDATE SET value = excluded.value
	`, period, flag, value)
	if err != nil {
		return fmt.Errorf("failed to set checklist flag %s: %w", flag, err)
	}
	return nil
}

func insertEvent(ctx context.Context, q queryable, period model.PeriodID, e model.TimelineEvent) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO closing_timeline (id, period, at, kind, flag, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, period, e.At, e.Kind, e.Flag, e.Message)
	if err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

// SetChecklistFlag writes a single checklist flag.
func (s *SQLiteStorage) SetChecklistFlag(ctx context.Context, period model.PeriodID, flag model.ChecklistFlag, value bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}
	if !model.IsValidFlag(flag) {
		return invalid(ErrInvalidState, "unknown checklist flag %q", flag)
	}

	return s.withTx(ctx, "set checklist flag", func(tx *sql.Tx) error {
		if err := ensureClosingRow(ctx, tx, period); err != nil {
			return err
		}
		return upsertFlag(ctx, tx, period, flag, value)
	})
}

// AppendTimelineEvent stores one event. Events with a known id are ignored.
func (s *SQLiteStorage) AppendTimelineEvent(ctx context.Context, period model.PeriodID, event model.TimelineEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePeriod(period); err != nil {
		return err
	}
	if err := validateString(event.ID, "event.ID"); err != nil {
		return err
	}

	return s.withTx(ctx, "append timeline event", func(tx *sql.Tx) error {
		if err := ensureClosingRow(ctx, tx, period); err != nil {
			return err
		}
		return insertEvent(ctx, tx, period, event)
	})
}

// SaveClosingState writes status, snapshot, checklist and new timeline events
// atomically.
func (s *SQLiteStorage) SaveClosingState(ctx context.Context, state *model.ClosingState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateClosingState(state); err != nil {
		return err
	}

	var summary sql.NullString
	if state.ConsolidatedSummary != nil {
		data, err := json.Marshal(state.ConsolidatedSummary)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}

	return s.withTx(ctx, "save closing state", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO closing_states (period, status, summary, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(period) DO UPDATE SET
				status = excluded.status,
				summary = excluded.summary,
				updated_at = excluded.updated_at
		`, state.Period, state.Status, summary, state.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert closing state: %w", err)
		}

		for flag, value := range state.Checklist {
			if err := upsertFlag(ctx, tx, state.Period, flag, value); err != nil {
				return err
			}
		}
		for _, e := range state.Timeline {
			if err := insertEvent(ctx, tx, state.Period, e); err != nil {
				return err
			}
		}
		return nil
	})
}
