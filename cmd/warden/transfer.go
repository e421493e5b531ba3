// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/access"
)

type transferStatus struct {
	Role     string          `json:"role" yaml:"role"`
	Pending  bool            `json:"pending" yaml:"pending"`
	Target   access.Identity `json:"target,omitempty" yaml:"target,omitempty"`
	Deadline uint64          `json:"deadline" yaml:"deadline"`
}

func formatDeadline(deadline uint64) string {
	if deadline == 0 {
		return "0 (idle)"
	}
	return time.Unix(int64(deadline), 0).UTC().Format(time.RFC3339) //nolint:gosec // ledger seconds fit in int64
}

func newTransferCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Delayed ownership transfer of Admin and EmergencyAdmin",
		Long: `Admin and EmergencyAdmin change hands in two steps: commit names the new
holder and starts a three-day wait; apply performs the handover once the
deadline has passed. revert cancels a pending transfer.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "commit <role> <target>",
		Short: "Start a delayed transfer (requires Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				target := access.Identity(args[1])
				deadline, err := a.service.CommitTransfer(ctx, caller, args[0], target)
				if err != nil {
					return err
				}
				return a.out.print(transferStatus{Role: args[0], Pending: true, Target: target, Deadline: deadline},
					line("transfer of %s to %s committed; ready at %s", args[0], target, formatDeadline(deadline)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "apply <role>",
		Short: "Complete a transfer whose deadline has passed (requires Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				holder, err := a.service.ApplyTransfer(ctx, caller, args[0])
				if err != nil {
					return err
				}
				return a.out.print(roleHolder{Role: args[0], Holder: holder}, line("%s: %s", args[0], holder))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revert <role>",
		Short: "Cancel a pending transfer (requires Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.service.RevertTransfer(ctx, caller, args[0]); err != nil {
					return err
				}
				return a.out.print(transferStatus{Role: args[0]}, line("transfer of %s reverted", args[0]))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deadline <role>",
		Short: "Show the pending transfer deadline (0 when idle)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				deadline, err := a.service.TransferDeadline(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.print(transferStatus{Role: args[0], Pending: deadline != 0, Deadline: deadline},
					line("%d", deadline))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "future <role>",
		Short: "Show the pending transfer target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				target, pending, err := a.service.FutureHolder(ctx, args[0])
				if err != nil {
					return err
				}
				text := line("%s", target)
				if !pending {
					text = line("-")
				}
				return a.out.print(transferStatus{Role: args[0], Pending: pending, Target: target}, text)
			})
		},
	})

	return cmd
}
