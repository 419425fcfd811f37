// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// openMigrator resolves the database URL from config and builds a Migrator.
func openMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database.url is required (flag, config file, or CONTACTDIR_DATABASE__URL)")
	}
	return store.NewMigrator(cfg.Database.URL)
}

func newMigrateUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // close error is secondary to migration result

			pending, err := migrator.PendingMigrations()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("No pending migrations")
				return nil
			}

			if err := migrator.Up(); err != nil {
				return err
			}
			cmd.Printf("Applied %d migration(s)\n", len(pending))
			return nil
		},
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all tables; re-run with --yes to confirm")
			}

			migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // close error is secondary to migration result

			if err := migrator.Down(); err != nil {
				return err
			}
			cmd.Println("Rolled back all migrations")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive rollback")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // close error is secondary to status output

			version, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			cmd.Printf("Current version: %d (dirty: %v)\n", version, dirty)

			applied, err := migrator.AppliedMigrations()
			if err != nil {
				return err
			}
			for _, v := range applied {
				name, _ := store.MigrationName(v)
				cmd.Printf("  applied: %s\n", name)
			}

			pending, err := migrator.PendingMigrations()
			if err != nil {
				return err
			}
			for _, v := range pending {
				name, _ := store.MigrationName(v)
				cmd.Printf("  pending: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}

func newMigrateForceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Long: `Set the recorded migration version without running any SQL.
Use only to recover from a dirty state after manually fixing the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 0 {
				return oops.Code("INVALID_VERSION").Errorf("version must be a non-negative integer, got %q", args[0])
			}

			migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // close error is secondary to force result

			if err := migrator.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced migration version to %d\n", version)
			return nil
		},
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}
