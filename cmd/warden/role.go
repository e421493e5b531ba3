// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/access"
)

func newInitAdminCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-admin <identity>",
		Short: "Bind the Admin role for the first time",
		Long: `Bind the Admin role to an identity. This succeeds exactly once; after
that the Admin role moves only through a delayed transfer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				id := access.Identity(args[0])
				if err := a.service.InitAdmin(ctx, id); err != nil {
					return err
				}
				return a.out.print(roleHolder{Role: access.Admin.String(), Holder: id},
					line("Admin initialized: %s", id))
			})
		},
	}
}

type roleHolder struct {
	Role   string          `json:"role" yaml:"role"`
	Holder access.Identity `json:"holder" yaml:"holder"`
}

type roleHolders struct {
	Role    string            `json:"role" yaml:"role"`
	Holders []access.Identity `json:"holders" yaml:"holders"`
}

type roleCheck struct {
	Role     string          `json:"role" yaml:"role"`
	Identity access.Identity `json:"identity" yaml:"identity"`
	HasRole  bool            `json:"has_role" yaml:"has_role"`
}

func newRoleCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage and query role bindings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <role> <identity>",
		Short: "Bind a single-holder role (requires Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				id := access.Identity(args[1])
				if err := a.service.SetRole(ctx, caller, args[0], id); err != nil {
					return err
				}
				return a.out.print(roleHolder{Role: args[0], Holder: id}, line("%s: %s", args[0], id))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-holders <role> [identity...]",
		Short: "Replace the members of a multi-holder role (requires Admin)",
		Long: `Replace the whole member set of a multi-holder role. Duplicates are
ignored; passing no identities clears the role.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				ids := make([]access.Identity, 0, len(args)-1)
				for _, arg := range args[1:] {
					ids = append(ids, access.Identity(arg))
				}
				holders, err := a.service.SetRoleHolders(ctx, caller, args[0], ids)
				if err != nil {
					return err
				}
				return a.out.print(roleHolders{Role: args[0], Holders: holders},
					line("%s: %s", args[0], joinIdentities(holders)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <role>",
		Short: "Show the holder of a single-holder role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				id, err := a.service.Role(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.print(roleHolder{Role: args[0], Holder: id}, line("%s", id))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "holders <role>",
		Short: "Show the members of a multi-holder role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				holders, err := a.service.RoleHolders(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.print(roleHolders{Role: args[0], Holders: holders}, func(w io.Writer) error {
					for _, id := range holders {
						if _, err := fmt.Fprintln(w, id); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "has <role> <identity>",
		Short: "Report whether an identity passes a check for a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				id := access.Identity(args[1])
				ok, err := a.service.HasRole(ctx, id, args[0])
				if err != nil {
					return err
				}
				return a.out.print(roleCheck{Role: args[0], Identity: id, HasRole: ok}, line("%t", ok))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "require <role>",
		Short: "Fail unless --caller passes a check for a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := g.requireCaller()
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.service.RequireRole(ctx, caller, args[0]); err != nil {
					return err
				}
				return a.out.print(roleCheck{Role: args[0], Identity: caller, HasRole: true}, line("authorized"))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every role with its holders and transfer state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				statuses, err := a.service.Describe(ctx)
				if err != nil {
					return err
				}
				return a.out.print(statuses, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					_, _ = fmt.Fprintln(tw, "ROLE\tKIND\tDELAYED\tHOLDERS\tPENDING")
					for _, s := range statuses {
						pending := "-"
						if s.Transfer.Pending() {
							pending = fmt.Sprintf("%s @ %d", s.Transfer.Target, s.Transfer.Deadline)
						}
						_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
							s.Role, s.Multiplicity, s.TransferDelayed, joinIdentities(s.Holders), pending)
					}
					return tw.Flush()
				})
			})
		},
	})

	return cmd
}

func joinIdentities(ids []access.Identity) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
