// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package config loads authcore configuration from defaults, a YAML file,
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"net/url"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/portfolioapp/authcore/internal/auth"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete authcore configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Notify   NotifyConfig   `koanf:"notify"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr                 string        `koanf:"addr" jsonschema:"description=API listen address"`
	AllowedOrigins       []string      `koanf:"allowed_origins" jsonschema:"description=CORS origin glob patterns"`
	MaskResetEnumeration bool          `koanf:"mask_reset_enumeration" jsonschema:"description=Answer forgot-password identically for unknown emails"`
	ShutdownTimeout      time.Duration `koanf:"shutdown_timeout"`
	RateLimitBurst       int           `koanf:"rate_limit_burst" jsonschema:"minimum=0,description=Credential requests a client may burst; 0 disables rate limiting"`
	RateLimitPerSecond   float64       `koanf:"rate_limit_per_second" jsonschema:"description=Sustained credential requests per second per client"`
	TrustProxyHeaders    bool          `koanf:"trust_proxy_headers" jsonschema:"description=Identify clients by X-Forwarded-For"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=Metrics listen address; empty disables"`
}

// DatabaseConfig selects and configures account storage.
type DatabaseConfig struct {
	URL         string `koanf:"url" jsonschema:"description=PostgreSQL connection URL"`
	Driver      string `koanf:"driver" jsonschema:"enum=postgres,enum=memory"`
	AutoMigrate bool   `koanf:"auto_migrate" jsonschema:"description=Apply pending migrations on serve"`
}

// AuthConfig configures credentials and session tokens.
type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret" jsonschema:"description=HS256 signing secret (at least 32 bytes)"`
	Issuer             string        `koanf:"issuer"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
	ExtendedSessionTTL time.Duration `koanf:"extended_session_ttl"`
	ResetTTL           time.Duration `koanf:"reset_ttl"`
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	FrontendURL  string `koanf:"frontend_url" jsonschema:"description=Base URL for links in emails"`
	AppName      string `koanf:"app_name"`
	From         string `koanf:"from"`
	SMTPAddr     string `koanf:"smtp_addr" jsonschema:"description=host:port of the SMTP relay; empty logs mail instead"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	Workers      int    `koanf:"workers" jsonschema:"minimum=1"`
	QueueSize    int    `koanf:"queue_size" jsonschema:"minimum=1"`
	MaxRetries   int    `koanf:"max_retries" jsonschema:"minimum=0"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// defaults are keyed by koanf path.
func defaults() map[string]any {
	return map[string]any{
		"http.addr":                   ":8080",
		"http.allowed_origins":        []string{"http://localhost:3000"},
		"http.mask_reset_enumeration": true,
		"http.shutdown_timeout":       10 * time.Second,
		"http.rate_limit_burst":       10,
		"http.rate_limit_per_second":  0.5,
		"http.trust_proxy_headers":    false,
		"metrics.addr":                "127.0.0.1:9100",
		"database.url":                "",
		"database.driver":             DriverPostgres,
		"database.auto_migrate":       false,
		"auth.jwt_secret":             "",
		"auth.issuer":                 auth.DefaultIssuer,
		"auth.session_ttl":            auth.DefaultSessionTTL,
		"auth.extended_session_ttl":   auth.DefaultExtendedSessionTTL,
		"auth.reset_ttl":              auth.DefaultResetTTL,
		"notify.frontend_url":         "http://localhost:3000",
		"notify.app_name":             "Portfolio App",
		"notify.from":                 "no-reply@localhost",
		"notify.smtp_addr":            "",
		"notify.smtp_username":        "",
		"notify.smtp_password":        "",
		"notify.workers":              2,
		"notify.queue_size":           256,
		"notify.max_retries":          3,
		"log.format":                  "json",
		"log.level":                   "info",
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		if _, err := glob.Compile(origin); err != nil {
			return oops.Code("CONFIG_INVALID").With("key", "http.allowed_origins").With("origin", origin).Wrap(err)
		}
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", "must be positive")
	}
	if c.HTTP.RateLimitBurst < 0 {
		return invalid("http.rate_limit_burst", "must not be negative")
	}
	if c.HTTP.RateLimitBurst > 0 && c.HTTP.RateLimitPerSecond <= 0 {
		return invalid("http.rate_limit_per_second", "must be positive when rate limiting is enabled")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required for the postgres driver (or set DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return invalid("database.driver", "must be 'postgres' or 'memory', got %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return invalid("auth.jwt_secret", "must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.Issuer == "" {
		return invalid("auth.issuer", "is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "must be positive")
	}
	if c.Auth.ExtendedSessionTTL <= c.Auth.SessionTTL {
		return invalid("auth.extended_session_ttl", "must be longer than auth.session_ttl")
	}
	if c.Auth.ResetTTL <= 0 {
		return invalid("auth.reset_ttl", "must be positive")
	}

	u, err := url.Parse(c.Notify.FrontendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("notify.frontend_url", "must be an absolute http(s) URL")
	}
	if c.Notify.SMTPAddr != "" && c.Notify.From == "" {
		return invalid("notify.from", "is required when notify.smtp_addr is set")
	}
	if c.Notify.Workers < 1 {
		return invalid("notify.workers", "must be at least 1")
	}
	if c.Notify.QueueSize < 1 {
		return invalid("notify.queue_size", "must be at least 1")
	}
	if c.Notify.MaxRetries < 0 {
		return invalid("notify.max_retries", "must not be negative")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
