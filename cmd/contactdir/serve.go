// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/cache"
	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/contacts"
	contactspg "github.com/contactdir/contactdir/internal/contacts/postgres"
	"github.com/contactdir/contactdir/internal/logging"
	"github.com/contactdir/contactdir/internal/observability"
	"github.com/contactdir/contactdir/internal/session"
	"github.com/contactdir/contactdir/internal/store"
	"github.com/contactdir/contactdir/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// readinessProbeTimeout bounds the db/cache pings behind /healthz/readiness.
const readinessProbeTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ContactDir API server",
		Long: `Start the HTTP API server along with the observability endpoints.
Configuration merges the config file, CONTACTDIR_* environment variables,
and command-line flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "apply pending database migrations on startup")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("redis.addr", "", "Redis server address (host:port)")
	cmd.Flags().String("server.listen_addr", "", "HTTP API listen address")
	cmd.Flags().String("server.observability_addr", "", "health and metrics listen address")
	cmd.Flags().String("auth.hasher", "", "password hashing scheme (sha256 or argon2id)")
	cmd.Flags().String("log.format", "", "log format (text or json)")
	cmd.Flags().String("log.level", "", "minimum log level")

	return cmd
}

// newHasher maps the configured scheme to its implementation.
func newHasher(scheme string) auth.PasswordHasher {
	if scheme == config.HasherArgon2id {
		return auth.NewArgon2idHasher()
	}
	return auth.NewSHA256Hasher()
}

func runServe(cmd *cobra.Command, autoMigrate bool) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("contactdir", version, cfg.Log.Format, cfg.Log.Level)

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (flag, config file, or CONTACTDIR_DATABASE__URL)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		slog.Info("applying pending migrations")
		migrator, err := store.NewMigrator(cfg.Database.URL)
		if err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close() //nolint:errcheck // migration error takes precedence
			return err
		}
		if err := migrator.Close(); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	cacheClient, err := cache.Dial(ctx, cache.Options{
		Addr:   cfg.Redis.Addr,
		Prefix: cfg.Redis.Prefix,
		TTL:    time.Duration(cfg.Redis.TTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}
	slog.Info("connected to cache", "addr", cfg.Redis.Addr, "ttl", cacheClient.TTL())

	authSvc, err := auth.NewService(authpg.NewCredentialRepository(pool), newHasher(cfg.Auth.Hasher))
	if err != nil {
		return err
	}
	contactSvc, err := contacts.NewService(contactspg.NewContactRepository(pool))
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(authSvc, cacheClient)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.Server.ObservabilityAddr, func() bool {
		probeCtx, cancel := context.WithTimeout(context.Background(), readinessProbeTimeout)
		defer cancel()
		return pool.Ping(probeCtx) == nil && cacheClient.Ping(probeCtx) == nil
	})

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}

	apiServer, err := web.NewServer(cfg.Server.ListenAddr, web.Deps{
		Auth:     authSvc,
		Contacts: contactSvc,
		Sessions: sessions,
		Cache:    cacheClient,
		Metrics:  obsServer.Metrics(),
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServer(obsServer.Stop)
		return err
	}

	slog.Info("contactdir started",
		"api_addr", apiServer.Addr(),
		"observability_addr", obsServer.Addr(),
		"hasher", cfg.Auth.Hasher,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err = <-apiErrCh:
		if err != nil {
			slog.Error("api server failed", "error", err)
		}
	case err = <-obsErrCh:
		if err != nil {
			slog.Error("observability server failed", "error", err)
		}
	}

	stopServer(apiServer.Stop)
	stopServer(obsServer.Stop)
	return err
}

func stopServer(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Error("graceful stop failed", "error", err)
	}
}
