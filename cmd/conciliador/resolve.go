package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/storage"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the pending divergences of a period",
		Long: `Walk through the divergences saved as pending by an earlier import or an
interrupted session.

Decisions: 1 movement seller, 2 XML seller, 3 corrected seller, 4 movement
date, 5 XML date, =CODE assign a seller, i ignore the invoice. Use b to go
back and q to stop; decisions made so far are saved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			useTUI, _ := cmd.Flags().GetBool("tui")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var result *engine.ImportResult
			err = runWithPrompter(ctx, period, false, useTUI, func(ctx context.Context, prompter engine.Prompter) error {
				eng, err := newEngine(store, prompter)
				if err != nil {
					return err
				}
				result, err = eng.ResolvePending(ctx, period)
				return err
			})
			if err != nil {
				return err
			}

			if result.Divergences == 0 {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("No divergences pending for %s", period))) //nolint:forbidigo // User-facing output
				return nil
			}
			printImportResult(result)
			return nil
		},
	}

	addPeriodFlag(cmd)
	cmd.Flags().Bool("tui", false, "resolve divergences in the full-screen resolver")
	return cmd
}

func divergencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "divergences",
		Short: "List the pending divergences of a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}

			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				pending, err := eng.Divergences(cmd.Context(), period)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println(cli.FormatSuccess(fmt.Sprintf("No divergences pending for %s", period))) //nolint:forbidigo // User-facing output
					return nil
				}

				fmt.Println(cli.FormatTitle(fmt.Sprintf("%d divergence(s) pending for %s", len(pending), period))) //nolint:forbidigo // User-facing output
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tTYPE\tAMOUNT\tMOVEMENT\tXML\tSEVERITY\tREASON")
				for _, inv := range pending {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						inv.Key,
						inv.Type,
						cli.Money(inv.Amount),
						inv.MovementSeller,
						inv.XMLSeller,
						cli.SeverityStyle(inv.Severity).Render(string(inv.Severity)),
						inv.DivergenceReason)
				}
				return w.Flush()
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}
