// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/api"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/store"
)

const (
	shutdownTimeout  = 5 * time.Second
	readinessTimeout = 2 * time.Second
)

// httpServer is the lifecycle shared by the API and observability servers.
type httpServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and observability servers",
		Long: `Serve the access-control API on api.addr and, when metrics.addr is set,
health and Prometheus endpoints on metrics.addr. Callers identify themselves
with the X-Caller-Identity header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if autoMigrate {
				if err := g.migrateIfPostgres(cmd); err != nil {
					return err
				}
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				return runServe(ctx, cmd, a)
			})
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving (postgres driver only)")
	return cmd
}

func (g *globalFlags) migrateIfPostgres(cmd *cobra.Command) error {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return nil
	}
	return g.withMigrator(cmd, func(m *store.Migrator) error {
		return m.Up()
	})
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
		started   []httpServer
	)
	if a.cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(a.cfg.Metrics.Addr, observability.PingReadiness(a.store, readinessTimeout))
		metrics = obsServer.Metrics()
	}

	stopAll := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(shutdownCtx); err != nil {
				a.logger.Warn("error stopping server", "addr", started[i].Addr(), "error", err)
			}
		}
	}
	defer stopAll()

	if obsServer != nil {
		errCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(err)
		}
		started = append(started, obsServer)
		go monitorServerErrors(ctx, cancel, errCh, "observability")
	}

	handler := api.NewHandler(a.service, metrics, a.logger)
	apiServer := api.NewServer(a.cfg.API.Addr, handler.Router())
	errCh, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("server", "api").Wrap(err)
	}
	started = append(started, apiServer)
	go monitorServerErrors(ctx, cancel, errCh, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("warden serving on", apiServer.Addr())
	a.logger.Info("warden ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", a.cfg.Metrics.Addr,
		"store_driver", a.cfg.Store.Driver,
	)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}
	return nil
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
