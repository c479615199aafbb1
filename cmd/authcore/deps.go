// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/portfolioapp/authcore/internal/config"
	"github.com/portfolioapp/authcore/internal/notify"
	"github.com/portfolioapp/authcore/internal/observability"
	"github.com/portfolioapp/authcore/internal/store"
)

// Deps contains injectable dependencies shared by the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens a database pool.
	// Default: store.Connect with store.DefaultConnectOptions
	PoolFactory func(ctx context.Context, url string) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// MailerFactory creates the notification transport.
	// Default: SMTP when notify.smtp_addr is set, otherwise a log mailer
	MailerFactory func(cfg config.NotifyConfig, logger *slog.Logger) (notify.Mailer, error)

	// Ready is called once every server is listening, with the API address.
	Ready func(apiAddr string)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			return store.Connect(ctx, url, store.DefaultConnectOptions)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.MailerFactory == nil {
		out.MailerFactory = newMailer
	}
	if out.Ready == nil {
		out.Ready = func(string) {}
	}
	return &out
}

// Pool wraps the methods used from *pgxpool.Pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func newMailer(cfg config.NotifyConfig, logger *slog.Logger) (notify.Mailer, error) {
	if cfg.SMTPAddr == "" {
		logger.Warn("notify.smtp_addr is empty; notifications will be logged, not sent")
		return notify.NewLogMailer(logger), nil
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		From:     cfg.From,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
}
