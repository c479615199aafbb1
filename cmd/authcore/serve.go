// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/auth/memory"
	"github.com/portfolioapp/authcore/internal/auth/postgres"
	"github.com/portfolioapp/authcore/internal/config"
	"github.com/portfolioapp/authcore/internal/httpapi"
	"github.com/portfolioapp/authcore/internal/logging"
	"github.com/portfolioapp/authcore/internal/notify"
	"github.com/portfolioapp/authcore/internal/observability"
)

// serviceName labels every log record.
const serviceName = "authcore"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API that handles registration, login, email verification
and password resets, together with the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until a signal arrives, ctx is cancelled
// or a listener fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	logger.Info("starting authcore",
		"http_addr", cfg.HTTP.Addr,
		"database_driver", cfg.Database.Driver,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.AutoMigrate {
		if err := applyMigrations(cfg.Database.URL, deps, logger); err != nil {
			return err
		}
	}

	accounts, readiness, closeAccounts, err := openAccounts(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	issuer, err := newIssuer(cfg.Auth)
	if err != nil {
		return err
	}

	composer, err := notify.NewComposer(cfg.Notify.FrontendURL, cfg.Notify.AppName, cfg.Auth.ResetTTL)
	if err != nil {
		return oops.With("operation", "create notification composer").Wrap(err)
	}
	mailer, err := deps.MailerFactory(cfg.Notify, logger)
	if err != nil {
		return oops.With("operation", "create mailer").Wrap(err)
	}
	dispatcher, err := notify.NewDispatcher(mailer, composer, notify.DispatcherConfig{
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		MaxRetries: uint64(cfg.Notify.MaxRetries), //nolint:gosec // validated non-negative
	}, logger)
	if err != nil {
		return oops.With("operation", "start notification dispatcher").Wrap(err)
	}

	svc, err := auth.NewService(accounts, auth.NewArgon2idHasher(), issuer,
		auth.WithNotifier(dispatcher),
		auth.WithLogger(logger),
		auth.WithResetTTL(cfg.Auth.ResetTTL),
	)
	if err != nil {
		closeDispatcher(dispatcher, cfg, logger)
		return oops.With("operation", "create account service").Wrap(err)
	}

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			closeDispatcher(dispatcher, cfg, logger)
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	apiOpts := []httpapi.Option{httpapi.WithLogger(logger), httpapi.WithMetrics(metrics)}
	if cfg.HTTP.RateLimitBurst > 0 {
		limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
			Burst:     cfg.HTTP.RateLimitBurst,
			PerSecond: cfg.HTTP.RateLimitPerSecond,
			Metrics:   metrics,
		})
		defer limiter.Close()
		apiOpts = append(apiOpts, httpapi.WithRateLimiter(limiter))
	}

	api, err := httpapi.New(svc, issuer, httpapi.Config{
		AllowedOrigins:       cfg.HTTP.AllowedOrigins,
		MaskResetEnumeration: cfg.HTTP.MaskResetEnumeration,
		TrustProxyHeaders:    cfg.HTTP.TrustProxyHeaders,
	}, apiOpts...)
	if err != nil {
		stopObservability(obsServer, cfg, logger)
		closeDispatcher(dispatcher, cfg, logger)
		return oops.With("operation", "create api server").Wrap(err)
	}
	apiErrChan, err := api.Start(cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, cfg, logger)
		closeDispatcher(dispatcher, cfg, logger)
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("authcore started")
	logger.Info("authcore ready", "api_addr", api.Addr())
	deps.Ready(api.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Stop intake first so no request submits to a closed dispatcher.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("error draining notifications", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// openAccounts opens the configured account repository. The returned
// readiness checker is nil for in-memory storage.
func openAccounts(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (auth.AccountRepository, observability.ReadinessChecker, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory account storage; accounts are lost on exit")
		return memory.NewAccountRepository(), nil, func() {}, nil
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	logger.Info("connected to database")
	return postgres.NewAccountRepository(pool), pool.Ping, pool.Close, nil
}

func applyMigrations(databaseURL string, deps *Deps, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	current, _, err := migrator.Version()
	if err != nil {
		return oops.With("operation", "read schema version").Wrap(err)
	}
	logger.Info("database schema up to date", "version", current)
	return nil
}

func newIssuer(cfg config.AuthConfig) (*auth.JWTIssuer, error) {
	issuer, err := auth.NewJWTIssuer(auth.JWTIssuerConfig{
		Secret:      []byte(cfg.JWTSecret),
		Issuer:      cfg.Issuer,
		TTL:         cfg.SessionTTL,
		ExtendedTTL: cfg.ExtendedSessionTTL,
	})
	if err != nil {
		return nil, oops.With("operation", "create token issuer").Wrap(err)
	}
	return issuer, nil
}

func closeDispatcher(d *notify.Dispatcher, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		logger.Warn("error draining notifications during cleanup", "error", err)
	}
}

func stopObservability(s ObservabilityServer, cfg *config.Config, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
// It exits when an error arrives, the channel closes, or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
