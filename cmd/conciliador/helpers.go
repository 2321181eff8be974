package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/config"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath()
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open database %s (set database.path or --db)", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newEngine wires an engine from configuration. prompter may be nil.
func newEngine(store *storage.SQLiteStorage, prompter engine.Prompter) (*engine.Engine, error) {
	calculator, err := config.LoadCalculator()
	if err != nil {
		return nil, err
	}
	return engine.New(store, calculator, prompter, config.LoadPolicy()), nil
}

// withEngine opens storage, runs fn and closes storage again.
func withEngine(ctx context.Context, prompter engine.Prompter, fn func(*engine.Engine, *storage.SQLiteStorage) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := newEngine(store, prompter)
	if err != nil {
		return err
	}
	return fn(eng, store)
}

// addPeriodFlag registers the --period flag shared by every period command.
func addPeriodFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("period", "p", "", "period to work on (YYYY-MM, default: previous month)")
}

// periodFromFlag reads --period, defaulting to the month before now: closing
// is done after the month ends.
func periodFromFlag(cmd *cobra.Command) (model.PeriodID, error) {
	raw, _ := cmd.Flags().GetString("period")
	if raw == "" {
		return previousPeriod(time.Now()), nil
	}
	period, err := model.ParsePeriod(raw)
	if err != nil {
		return "", common.NewValidationError(err, "invalid --period %q", raw)
	}
	return period, nil
}

// previousPeriod steps back from the first of the month so that day 31
// never overflows into the current month.
func previousPeriod(now time.Time) model.PeriodID {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return model.PeriodOf(first.AddDate(0, -1, 0))
}

func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
