// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/ledger"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/internal/store/redisstore"
	"github.com/holomush/warden/internal/store/sqlite"
	"github.com/holomush/warden/internal/xdg"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	service *access.Service
	out     *printer
}

// Close releases the store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

// loadConfig reads configuration for cmd from defaults, file and flags.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		File:        g.configFile,
		DefaultFile: xdg.ConfigFile(),
		Flags:       cmd.Flags(),
	})
}

// newApp loads configuration, sets up logging and opens the store.
func (g *globalFlags) newApp(cmd *cobra.Command) (*app, error) {
	out, err := newPrinter(cmd.OutOrStdout(), g.output)
	if err != nil {
		return nil, err
	}

	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.Setup(logging.Options{
		Service: "warden",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, err
	}

	ctrl := access.NewController(st, ledger.SystemClock{}, access.WithLogger(logger))
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		service: access.NewService(ctrl),
		out:     out,
	}, nil
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverPostgres:
		st, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverRedis:
		st, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, oops.Code(config.CodeInvalid).With("driver", cfg.Driver).Errorf("unknown store driver")
	}
}

// requireCaller returns the --caller identity or a CONFIG_INVALID error.
func (g *globalFlags) requireCaller() (access.Identity, error) {
	if g.caller == "" {
		return "", oops.Code(config.CodeInvalid).Errorf("--caller is required for this command")
	}
	return access.Identity(g.caller), nil
}

// withApp runs fn with a fully initialized app and closes it afterwards.
func (g *globalFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := g.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}
