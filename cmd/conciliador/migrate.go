package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/conciliador/internal/cli"
	"github.com/Veraticus/conciliador/internal/config"
	"github.com/Veraticus/conciliador/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup; this one is for checking the schema
or preparing a database ahead of time.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "show current schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")
	dbPath := config.DatabasePath()

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Database:        %s\n", dbPath)                        //nolint:forbidigo // User-facing output
		fmt.Printf("Current version: %d\n", version)                       //nolint:forbidigo // User-facing output
		fmt.Printf("Latest version:  %d\n", storage.ExpectedSchemaVersion) //nolint:forbidigo // User-facing output
		if version < storage.ExpectedSchemaVersion {
			fmt.Println(cli.FormatWarning("Migrations pending. Run: conciliador migrate")) //nolint:forbidigo // User-facing output
		}
		return nil
	}

	slog.Info("Running database migrations", "database", dbPath)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println(cli.FormatSuccess("Database migrations completed")) //nolint:forbidigo // User-facing output
	return nil
}
