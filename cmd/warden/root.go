// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
)

// globalFlags holds flags shared by every subcommand.
type globalFlags struct {
	configFile string
	caller     string
	output     string
}

// NewRootCmd creates the root command for the warden CLI.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - role-based access control with delayed ownership transfer",
		Long: `warden stores a fixed catalog of privileged roles, gates operations on
them, and hands the Admin and EmergencyAdmin roles over only through a
time-locked commit/apply transfer. It also holds a single emergency flag.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/warden/config.yaml)")
	flags.StringVar(&g.caller, "caller", "", "authenticated identity performing the operation")
	flags.StringVarP(&g.output, "output", "o", outputText, "output format (text, json or yaml)")
	config.RegisterFlags(flags)

	cmd.AddCommand(newInitAdminCmd(g))
	cmd.AddCommand(newRoleCmd(g))
	cmd.AddCommand(newTransferCmd(g))
	cmd.AddCommand(newEmergencyCmd(g))
	cmd.AddCommand(newMigrateCmd(g))
	cmd.AddCommand(newServeCmd(g))

	return cmd
}
