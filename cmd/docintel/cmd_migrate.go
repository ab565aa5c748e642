package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/infrastructure"
	"github.com/JaimeStill/docintel/internal/migrations"
	"github.com/JaimeStill/docintel/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the run ledger schema",
	Long:  "Apply or revert the ledger schema on the configured database.\nWith no subcommand, applies all pending migrations.",
	RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
		if err := mg.Up(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert every applied migration",
	RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
		if err := mg.Down(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations reverted")
		return nil
	}),
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Apply N migrations, or revert -N",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
		}
		if err := mg.Steps(n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration steps\n", n)
		return nil
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
		v, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version: %d, dirty: %v\n", v, dirty)
		return nil
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Mark VERSION as applied and clear the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("version must be an integer, got %q", args[0])
		}
		if err := mg.Force(v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "forced to version %d\n", v)
		return nil
	}),
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd, migrateStepsCmd, migrateVersionCmd, migrateForceCmd)
}

// withMigrator opens only the configured database, not the full service.
func withMigrator(fn func(*cobra.Command, *migrations.Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(rootFlags.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := infrastructure.NewLogger(&cfg.Logging, cmd.ErrOrStderr())
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Connection().Close()

		ctx := context.Background()
		mg, err := migrations.Open(ctx, db.Connection(), cfg.Database.Driver)
		if err != nil {
			return err
		}
		defer mg.Close()

		logger.Debug("migrating", slog.String("driver", cfg.Database.Driver))
		return fn(cmd, mg, args)
	}
}
