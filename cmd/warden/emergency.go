// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type emergencyStatus struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

func newEmergencyCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Read or set the emergency flag",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <true|false>",
		Short: "Set the emergency flag (requires EmergencyAdmin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("value", args[0]).Wrapf(err, "emergency value must be true or false")
			}
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.service.SetEmergencyMode(ctx, caller, value); err != nil {
					return err
				}
				return a.out.print(emergencyStatus{Enabled: value}, line("emergency mode: %t", value))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the emergency flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				value, err := a.service.EmergencyMode(ctx)
				if err != nil {
					return err
				}
				return a.out.print(emergencyStatus{Enabled: value}, line("emergency mode: %t", value))
			})
		},
	})

	return cmd
}
