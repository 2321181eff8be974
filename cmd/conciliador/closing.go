package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/closing"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/storage"
)

func checklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Run the pre-close checks of a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				items, err := eng.Checklist(cmd.Context(), period)
				if err != nil {
					return err
				}
				printChecklist(period, items)
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

func printChecklist(period model.PeriodID, items []model.CheckItem) {
	fmt.Println(cli.FormatTitle(fmt.Sprintf("Pre-close checklist %s", period))) //nolint:forbidigo // User-facing output
	for _, item := range items {
		fmt.Println("  " + cli.CheckLine(item)) //nolint:forbidigo // User-facing output
	}
	if closing.Blocked(items) {
		fmt.Println("\n" + cli.FormatError("The period cannot be closed yet.")) //nolint:forbidigo // User-facing output
	} else {
		fmt.Println("\n" + cli.FormatSuccess("Ready to close. Run: conciliador close --period "+string(period))) //nolint:forbidigo // User-facing output
	}
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Preview the snapshot a close would freeze",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				snapshot, err := eng.Machine().Simulate(cmd.Context(), period)
				if err != nil {
					return err
				}
				printSnapshot(fmt.Sprintf("Simulated close %s", period), snapshot)
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

func printSnapshot(title string, snapshot *model.ConsolidatedSummary) {
	body := formatSummary(snapshot.Summary) + "\n\n" +
		cli.BoldStyle.Render("Commissions: "+cli.Money(snapshot.CommissionTotal))
	for _, l := range snapshot.Commissions {
		body += fmt.Sprintf("\n  %-8s %s", l.Seller, cli.Money(l.Commission))
	}
	fmt.Println(cli.RenderBox(title, body)) //nolint:forbidigo // User-facing output
}

func closeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a period and freeze its snapshot",
		Long: `Close a period: requires zero pending divergences, freezes the consolidated
snapshot and locks the ledger. A checkpoint of the database is taken first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")

			return withEngine(ctx, nil, func(eng *engine.Engine, store *storage.SQLiteStorage) error {
				items, err := eng.Checklist(ctx, period)
				if err != nil {
					return err
				}
				printChecklist(period, items)
				if closing.Blocked(items) {
					return nil
				}

				if !force && !confirm(fmt.Sprintf("Close %s? Data changes will be refused until it is reopened.", period)) {
					fmt.Println(cli.SubtitleStyle.Render("Close cancelled.")) //nolint:forbidigo // User-facing output
					return nil
				}

				autoCheckpoint(ctx, store, "close-"+string(period))

				state, err := eng.Machine().Close(ctx, period)
				if err != nil {
					return err
				}
				printSnapshot(fmt.Sprintf("%s Closed %s", cli.LockIcon, period), state.ConsolidatedSummary)
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	cmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")
	return cmd
}

func reopenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reopen",
		Short: "Reopen a closed period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(ctx, nil, func(eng *engine.Engine, store *storage.SQLiteStorage) error {
				autoCheckpoint(ctx, store, "reopen-"+string(period))
				if _, err := eng.Machine().Reopen(ctx, period); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reopened %s; the frozen snapshot was discarded", period))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the closing status, milestones and timeline of a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				state, err := eng.Machine().State(cmd.Context(), period)
				if err != nil {
					return err
				}

				status := cli.InfoStyle.Render(string(state.Status))
				if state.IsClosed() {
					status = cli.SuccessStyle.Render(cli.LockIcon + " " + string(state.Status))
				}
				fmt.Println(cli.FormatTitle(fmt.Sprintf("Period %s: %s", period, status))) //nolint:forbidigo // User-facing output

				for _, flag := range model.ChecklistFlags {
					mark := cli.SubtleStyle.Render("·")
					if state.Checklist[flag] {
						mark = cli.SuccessStyle.Render(cli.SuccessIcon)
					}
					fmt.Printf("  %s %s\n", mark, flag) //nolint:forbidigo // User-facing output
				}

				if len(state.Timeline) > 0 {
					fmt.Println("\n" + cli.BoldStyle.Render("Timeline")) //nolint:forbidigo // User-facing output
					for _, ev := range state.Timeline {
						fmt.Printf("  %s  %-9s %s\n", ev.At.Format("2006-01-02 15:04"), ev.Kind, ev.Message) //nolint:forbidigo // User-facing output
					}
				}
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

// autoCheckpoint snapshots the database before a state change. Failure only
// warns: the operation itself is reversible.
func autoCheckpoint(ctx context.Context, store *storage.SQLiteStorage, operation string) {
	manager, err := store.NewCheckpointManager()
	if err != nil {
		slog.Warn("Failed to create checkpoint manager", "error", err)
		return
	}
	info, err := manager.AutoCheckpoint(ctx, operation)
	if err != nil {
		slog.Warn("Failed to create automatic checkpoint", "operation", operation, "error", err)
		return
	}
	slog.Info("Created automatic checkpoint", "id", info.ID)
}

func confirm(question string) bool {
	fmt.Printf("%s (y/N) ", cli.FormatPrompt(question)) //nolint:forbidigo // User-facing output
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
}
