package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage database checkpoints",
		Long: `Create, list, restore, and delete database checkpoints.

Close and reopen take an automatic checkpoint; manual ones are useful before
re-importing a period.`,
		Example: `  # Create a checkpoint before re-importing March
  conciliador checkpoint create --tag pre-2024-03-reimport

  # List all checkpoints
  conciliador checkpoint list

  # Restore from a checkpoint
  conciliador checkpoint restore pre-2024-03-reimport`,
	}

	cmd.AddCommand(createCheckpointCmd())
	cmd.AddCommand(listCheckpointsCmd())
	cmd.AddCommand(restoreCheckpointCmd())
	cmd.AddCommand(deleteCheckpointCmd())

	return cmd
}

// withCheckpoints opens storage and hands fn a checkpoint manager. The
// store is closed afterwards even when fn has already closed it.
func withCheckpoints(cmd *cobra.Command, fn func(*storage.CheckpointManager) error) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, err := store.NewCheckpointManager()
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	return fn(manager)
}

func findCheckpoint(cmd *cobra.Command, manager *storage.CheckpointManager, id string) (*storage.CheckpointInfo, error) {
	checkpoints, err := manager.List(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	for i := range checkpoints {
		if checkpoints[i].ID == id {
			return &checkpoints[i], nil
		}
	}
	return nil, storage.ErrCheckpointNotFound
}

func createCheckpointCmd() *cobra.Command {
	var tag, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, func(manager *storage.CheckpointManager) error {
				info, err := manager.Create(cmd.Context(), tag, description)
				if err != nil {
					return fmt.Errorf("failed to create checkpoint: %w", err)
				}

				fmt.Printf("%s Created checkpoint %s (%s)\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(info.ID),
					formatFileSize(info.FileSize))
				if info.Description != "" {
					fmt.Printf("  Description: %s\n", info.Description) //nolint:forbidigo // User-facing output
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "checkpoint tag (auto-generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the checkpoint")

	return cmd
}

func listCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, func(manager *storage.CheckpointManager) error {
				checkpoints, err := manager.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list checkpoints: %w", err)
				}
				if len(checkpoints) == 0 {
					fmt.Println(cli.SubtitleStyle.Render("No checkpoints found.")) //nolint:forbidigo // User-facing output
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
				headers := []string{"NAME", "CREATED", "SIZE", "REPORTS", "INVOICES", "LEDGER", "CLOSED", "TYPE"}
				for i, h := range headers {
					headers[i] = headerStyle.Render(h)
				}
				fmt.Fprintln(w, strings.Join(headers, "\t"))

				for _, cp := range checkpoints {
					typeLabel := "manual"
					if cp.IsAuto {
						typeLabel = "auto"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
						cli.InfoStyle.Render(cp.ID),
						formatRelativeTime(cp.CreatedAt),
						formatFileSize(cp.FileSize),
						cp.Reports,
						cp.Invoices,
						cp.LedgerEntries,
						cp.ClosedPeriods,
						cli.SubtitleStyle.Render(typeLabel),
					)
				}
				return w.Flush()
			})
		},
	}
}

func restoreCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Restore database from a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withCheckpoints(cmd, func(manager *storage.CheckpointManager) error {
				info, err := findCheckpoint(cmd, manager, id)
				if err != nil {
					return err
				}

				if !force {
					fmt.Printf("%s This will replace your current database with checkpoint %s.\n", //nolint:forbidigo // User-facing output
						cli.WarningStyle.Render(cli.WarningIcon), cli.InfoStyle.Render(id))
					fmt.Printf("  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05")) //nolint:forbidigo // User-facing output
					if info.Description != "" {
						fmt.Printf("  Description: %s\n", info.Description) //nolint:forbidigo // User-facing output
					}
					if !confirm("Continue?") {
						fmt.Println(cli.SubtitleStyle.Render("Restore cancelled.")) //nolint:forbidigo // User-facing output
						return nil
					}
				}

				if err := manager.Restore(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to restore checkpoint: %w", err)
				}
				fmt.Printf("%s Restored from checkpoint %s\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

func deleteCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withCheckpoints(cmd, func(manager *storage.CheckpointManager) error {
				info, err := findCheckpoint(cmd, manager, id)
				if err != nil {
					return err
				}

				if !force {
					fmt.Printf("%s This will permanently delete checkpoint %s (%s).\n", //nolint:forbidigo // User-facing output
						cli.WarningStyle.Render(cli.WarningIcon), cli.InfoStyle.Render(id), formatFileSize(info.FileSize))
					if !confirm("Continue?") {
						fmt.Println(cli.SubtitleStyle.Render("Deletion cancelled.")) //nolint:forbidigo // User-facing output
						return nil
					}
				}

				if err := manager.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to delete checkpoint: %w", err)
				}
				fmt.Printf("%s Deleted checkpoint %s\n", //nolint:forbidigo // User-facing output
					cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}
