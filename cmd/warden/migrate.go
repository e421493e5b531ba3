// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/store"
)

type migrationStatus struct {
	Version uint   `json:"version" yaml:"version"`
	Dirty   bool   `json:"dirty" yaml:"dirty"`
	Pending []uint `json:"pending" yaml:"pending"`
}

func newMigrateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema migrations",
		Long: `Apply, roll back or inspect the embedded PostgreSQL schema. The
connection string comes from store.dsn, --store-dsn or DATABASE_URL.
The sqlite and redis drivers create their layout on open and need no
migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, deleting all access state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := newPrinter(cmd.OutOrStdout(), g.output)
			if err != nil {
				return err
			}
			return g.withMigrator(cmd, func(m *store.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				status := migrationStatus{Version: v, Dirty: dirty, Pending: pending}
				return out.print(status, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "version %d (dirty: %t, pending: %d)\n", v, dirty, len(pending))
					return err
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a schema version as applied without running it",
		Long: `Record a schema version as applied without running any SQL. Use this
to clear the dirty flag after a failed migration has been repaired by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return g.withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrapf(err, "version must be an integer")
	}
	return v, nil
}

// databaseURL returns the Postgres connection string from configuration.
func (g *globalFlags) databaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Store.DSN == "" {
		return "", oops.Code(config.CodeInvalid).Errorf("store.dsn or DATABASE_URL is required for migrations")
	}
	return cfg.Store.DSN, nil
}

func (g *globalFlags) withMigrator(cmd *cobra.Command, fn func(m *store.Migrator) error) error {
	dsn, err := g.databaseURL(cmd)
	if err != nil {
		return err
	}
	m, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}
