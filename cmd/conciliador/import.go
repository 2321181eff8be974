package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/config"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/movement"
	"github.com/Veraticus/conciliador/internal/tui"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the movement sheet and invoice XMLs of a month",
		Long: `Import the cash movement spreadsheet and the fiscal invoices (NFe XML) of a
month, classify every invoice and walk through the divergences.

Importing again merges into the saved report: invoices are replaced by key,
till sales and expenses are appended.`,
		Example: `  # Import March and resolve divergences on the terminal
  conciliador import --movement caixa-marco.xlsx --xml-dir notas/marco

  # Save divergences for later
  conciliador import --movement caixa-marco.xlsx --xml-dir notas/marco --defer

  # Resolve in the full-screen resolver
  conciliador import --movement caixa-marco.xlsx --xml-dir notas/marco --tui`,
		RunE: runImport,
	}

	cmd.Flags().StringP("movement", "m", "", "movement spreadsheet (.xlsx)")
	cmd.Flags().String("sheet", "", "worksheet of the movement spreadsheet (default: movement.sheet or the first sheet)")
	cmd.Flags().StringP("xml-dir", "x", "", "directory of NFe XML files")
	cmd.Flags().StringSlice("xml", nil, "individual NFe XML files")
	cmd.Flags().StringP("period", "p", "", "period (YYYY-MM, default: inferred from the sources)")
	cmd.Flags().Bool("defer", false, "save divergences as pending without prompting")
	cmd.Flags().Bool("tui", false, "resolve divergences in the full-screen resolver")
	cmd.Flags().Bool("dry-run", false, "classify and resolve without saving")

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	movementPath, _ := cmd.Flags().GetString("movement")
	sheet, _ := cmd.Flags().GetString("sheet")
	xmlDir, _ := cmd.Flags().GetString("xml-dir")
	xmlFiles, _ := cmd.Flags().GetStringSlice("xml")
	rawPeriod, _ := cmd.Flags().GetString("period")
	deferFlag, _ := cmd.Flags().GetBool("defer")
	useTUI, _ := cmd.Flags().GetBool("tui")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if movementPath == "" && xmlDir == "" && len(xmlFiles) == 0 {
		return common.NewValidationError(engine.ErrNothingToImport, "pass --movement, --xml-dir or --xml")
	}

	req := engine.ImportRequest{Defer: deferFlag, DryRun: dryRun}

	if movementPath != "" {
		if sheet == "" {
			sheet = config.MovementSheet()
		}
		batch, err := movement.NewParser(sheet).ParseFile(ctx, config.ExpandPath(movementPath))
		if err != nil {
			return fmt.Errorf("failed to read movement sheet: %w", err)
		}
		req.Movement = batch
	}

	if xmlDir != "" || len(xmlFiles) > 0 {
		invoices, err := readInvoices(ctx, xmlDir, xmlFiles)
		if err != nil {
			return err
		}
		req.Invoices = invoices
	}

	if rawPeriod != "" {
		period, err := model.ParsePeriod(rawPeriod)
		if err != nil {
			return common.NewValidationError(err, "invalid --period %q", rawPeriod)
		}
		req.Period = period
	} else {
		period, err := engine.InferPeriod(req.Movement, req.Invoices)
		if err != nil {
			return err
		}
		slog.Info("Inferred period from sources", "period", period)
		req.Period = period
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var result *engine.ImportResult
	run := func(ctx context.Context, prompter engine.Prompter) error {
		eng, err := newEngine(store, prompter)
		if err != nil {
			return err
		}
		result, err = eng.Import(ctx, req)
		return err
	}

	if err := runWithPrompter(ctx, req.Period, deferFlag, useTUI, run); err != nil {
		return err
	}

	printImportResult(result)
	return nil
}

func readInvoices(ctx context.Context, dir string, files []string) (map[string]model.InvoiceXMLRecord, error) {
	parser, err := config.LoadInvoiceParser()
	if err != nil {
		return nil, err
	}

	invoices := make(map[string]model.InvoiceXMLRecord)
	if dir != "" {
		fromDir, err := parser.ParseDir(ctx, config.ExpandPath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to read invoice directory: %w", err)
		}
		for k, v := range fromDir {
			invoices[k] = v
		}
	}
	if len(files) > 0 {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = config.ExpandPath(f)
		}
		fromFiles, err := parser.ParseFiles(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("failed to read invoice files: %w", err)
		}
		for k, v := range fromFiles {
			invoices[k] = v
		}
	}
	return invoices, nil
}

// runWithPrompter runs work with the prompter the flags ask for: none when
// deferring, the full-screen resolver with --tui, the line prompter otherwise.
func runWithPrompter(ctx context.Context, period model.PeriodID, deferred, useTUI bool, work func(context.Context, engine.Prompter) error) error {
	switch {
	case deferred:
		return work(ctx, nil)
	case useTUI:
		return tui.Run(ctx, work)
	default:
		handler := cli.NewInterruptHandler(os.Stdout)
		ctx = handler.HandleInterrupts(ctx, fmt.Sprintf("conciliador resolve --period %s", period))
		return work(ctx, cli.NewCLIPrompter(os.Stdin, os.Stdout))
	}
}

func printImportResult(r *engine.ImportResult) {
	if r == nil {
		return
	}

	title := fmt.Sprintf("Import %s", r.Period)
	if r.DryRun {
		title += " (dry run, nothing saved)"
	}

	body := fmt.Sprintf("Invoices classified: %d\n", r.Classified) +
		fmt.Sprintf("Auto-resolved:       %d\n", r.AutoResolved) +
		fmt.Sprintf("Divergences:         %d\n", r.Divergences) +
		fmt.Sprintf("Resolved now:        %d\n", r.Resolved) +
		fmt.Sprintf("Ignored:             %d\n", r.Dropped) +
		fmt.Sprintf("Pending:             %d", r.Pending)

	fmt.Println(cli.RenderBox(title, body)) //nolint:forbidigo // User-facing output

	switch {
	case r.Pending > 0:
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d divergence(s) pending. Run: conciliador resolve --period %s", r.Pending, r.Period))) //nolint:forbidigo // User-facing output
	case !r.DryRun:
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Report for %s saved. Next: conciliador commissions --period %s", r.Period, r.Period))) //nolint:forbidigo // User-facing output
	}
}
