package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/config"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/export"
	"github.com/Veraticus/conciliador/internal/sheets"
	"github.com/Veraticus/conciliador/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the period to an Excel workbook",
		Long: `Write the period's summary, invoices, sales without invoice, expenses and
commissions to an Excel workbook. An open period is exported with a simulated
summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(config.ExportDir(), export.FileName(period))
			}

			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				report, snapshot, closed, err := eng.Snapshot(cmd.Context(), period)
				if err != nil {
					return err
				}
				if err := export.WriteFile(report, snapshot, output); err != nil {
					return err
				}

				fmt.Println(cli.FormatSuccess("Exported " + output)) //nolint:forbidigo // User-facing output
				if !closed {
					fmt.Println(cli.FormatWarning("The period is still open; figures may change.")) //nolint:forbidigo // User-facing output
				}
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	cmd.Flags().StringP("output", "o", "", "workbook path (default: <export.dir>/fechamento-<period>.xlsx)")
	return cmd
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a closed period to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			sheetsConfig, err := config.LoadSheetsConfig()
			if err != nil {
				return fmt.Errorf("google sheets is not configured: %w", err)
			}

			return withEngine(ctx, nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				report, snapshot, closed, err := eng.Snapshot(ctx, period)
				if err != nil {
					return err
				}
				if !closed {
					return common.NewValidationError(sheets.ErrNotClosed, "close %s before publishing", period)
				}

				writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
				if err != nil {
					return err
				}
				id, err := writer.Publish(ctx, report, snapshot)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Published %s", period))) //nolint:forbidigo // User-facing output
				fmt.Printf("  https://docs.google.com/spreadsheets/d/%s\n", id)     //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}
