package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/storage"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the totals of a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				s, err := eng.Summary(cmd.Context(), period)
				if err != nil {
					return err
				}
				fmt.Println(cli.RenderBox(fmt.Sprintf("Summary %s", period), formatSummary(s))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

func formatSummary(s model.Summary) string {
	body := fmt.Sprintf("Gross sales:       %s\n", cli.Money(s.GrossSales)) +
		fmt.Sprintf("Returns:           %s\n", cli.Money(s.Returns)) +
		fmt.Sprintf("Sales w/o invoice: %s\n", cli.Money(s.NoInvoiceSales)) +
		fmt.Sprintf("Expenses:          %s\n", cli.Money(s.Expenses)) +
		cli.BoldStyle.Render(fmt.Sprintf("Net total:         %s", cli.Money(s.NetTotal))) + "\n\n" +
		fmt.Sprintf("Invoices: %d  cancelled: %d  divergent: %d  resolved: %d\n",
			s.InvoiceCount, s.CancelledCount, s.DivergentCount, s.ResolvedDivergences) +
		fmt.Sprintf("Till sales: %d  expenses: %d", s.NoInvoiceCount, s.ExpenseCount)

	methods := make([]model.PaymentMethod, 0, len(s.TotalsByMethod))
	for m := range s.TotalsByMethod {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	if len(methods) > 0 {
		body += "\n\nBy payment method:"
		for _, m := range methods {
			body += fmt.Sprintf("\n  %-12s %s", m, cli.Money(s.TotalsByMethod[m]))
		}
	}
	return body
}

func commissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commissions",
		Short: "Compute seller commissions for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				lines, total, err := eng.Commissions(cmd.Context(), period)
				if err != nil {
					return err
				}
				if len(lines) == 0 {
					fmt.Println(cli.SubtleStyle.Render("No attributed sales in " + string(period))) //nolint:forbidigo // User-facing output
					return nil
				}

				fmt.Println(cli.FormatTitle(fmt.Sprintf("Commissions %s", period))) //nolint:forbidigo // User-facing output
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(w, "SELLER\tSALES\tRETURNS\tBASE\tRATE\tCOMMISSION\t")
				for _, l := range lines {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\t%s\t\n",
						l.Seller, cli.Money(l.GrossSales), cli.Money(l.Returns), cli.Money(l.Base),
						l.Rate.StringFixed(2), cli.Money(l.Commission))
				}
				fmt.Fprintf(w, "TOTAL\t\t\t\t\t%s\t\n", cli.Money(total))
				return w.Flush()
			})
		},
	}
	addPeriodFlag(cmd)
	return cmd
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show ledger totals by seller, payment method and day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			period, err := periodFromFlag(cmd)
			if err != nil {
				return err
			}
			byDay, _ := cmd.Flags().GetBool("by-day")

			return withEngine(cmd.Context(), nil, func(eng *engine.Engine, _ *storage.SQLiteStorage) error {
				view, err := eng.LedgerTotals(cmd.Context(), period)
				if err != nil {
					return err
				}

				title := fmt.Sprintf("Ledger %s", period)
				if view.Locked {
					title += " " + cli.LockIcon
				}
				fmt.Println(cli.FormatTitle(title)) //nolint:forbidigo // User-facing output
				if view.Entries == 0 {
					fmt.Println(cli.SubtleStyle.Render("No ledger entries. Import the period first.")) //nolint:forbidigo // User-facing output
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SELLER\tTOTAL")
				for _, s := range view.Sellers() {
					fmt.Fprintf(w, "%s\t%s\n", s, cli.Money(view.BySeller[s]))
				}
				fmt.Fprintln(w, "\t")
				fmt.Fprintln(w, "METHOD\tTOTAL")
				methods := make([]model.PaymentMethod, 0, len(view.ByMethod))
				for m := range view.ByMethod {
					methods = append(methods, m)
				}
				sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
				for _, m := range methods {
					fmt.Fprintf(w, "%s\t%s\n", m, cli.Money(view.ByMethod[m]))
				}
				if byDay {
					fmt.Fprintln(w, "\t")
					fmt.Fprintln(w, "DAY\tTOTAL")
					for _, d := range view.Days() {
						fmt.Fprintf(w, "%s\t%s\n", d, cli.Money(view.ByDay[d]))
					}
				}
				fmt.Fprintf(w, "\t\nENTRIES %d\t%s\n", view.Entries, cli.Money(view.Total))
				return w.Flush()
			})
		},
	}
	addPeriodFlag(cmd)
	cmd.Flags().Bool("by-day", false, "include daily totals")
	return cmd
}
