// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the ContactDir CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contactdir",
		Short: "ContactDir - a multi-user contact directory service",
		Long: `ContactDir is a multi-user contact directory with credential
management, bearer-token sessions, and a Redis-backed sliding-expiry cache.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
