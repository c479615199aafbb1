// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/portfolioapp/authcore/internal/xdg"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "AUTHCORE_"

// DatabaseURLEnv is honored for database.url when AUTHCORE_DATABASE_URL is unset.
const DatabaseURLEnv = "DATABASE_URL"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"metrics-addr":    "metrics.addr",
	"database-url":    "database.url",
	"database-driver": "database.driver",
	"auto-migrate":    "database.auto_migrate",
	"frontend-url":    "notify.frontend_url",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]struct{}{
	"http.allowed_origins": {},
}

// RegisterFlags adds the configuration flags to fs. Their defaults mirror the
// built-in defaults; only flags set explicitly override other layers.
func RegisterFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("http-addr", d["http.addr"].(string), "API listen address")
	fs.String("metrics-addr", d["metrics.addr"].(string), "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("database-driver", d["database.driver"].(string), "account storage driver (postgres or memory)")
	fs.Bool("auto-migrate", false, "apply pending migrations before serving")
	fs.String("frontend-url", d["notify.frontend_url"].(string), "base URL for links in emails")
	fs.String("log-format", d["log.format"].(string), "log format (json or text)")
	fs.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
}

// Load builds a Config. path names a YAML file; when empty, the XDG config
// file is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k, err := load(path, flags)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// Keys returns the effective flattened configuration, for display. Secrets
// are masked.
func Keys(path string, flags *pflag.FlagSet) (map[string]any, error) {
	k, err := load(path, flags)
	if err != nil {
		return nil, err
	}
	all := k.All()
	for _, key := range []string{"auth.jwt_secret", "notify.smtp_password"} {
		if v, ok := all[key].(string); ok && v != "" {
			all[key] = "********"
		}
	}
	if u, ok := all["database.url"].(string); ok && u != "" {
		all["database.url"] = redactURL(u)
	}
	return all, nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DefaultYAML renders the built-in defaults as a YAML document.
func DefaultYAML() ([]byte, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

func load(path string, flags *pflag.FlagSet) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := loadFlags(k, flags); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func loadDefaults(k *koanf.Koanf) error {
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}
	return nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			// No resolvable home: nothing implicit to load.
			return nil //nolint:nilerr // implicit config is optional
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	if dsn := os.Getenv(DatabaseURLEnv); dsn != "" {
		if err := k.Set("database.url", dsn); err != nil {
			return oops.Code("CONFIG_ENV_FAILED").With("key", "database.url").Wrap(err)
		}
	}

	known := make(map[string]string)
	for key := range defaults() {
		known[EnvName(key)] = key
	}
	provider := env.ProviderWithValue(EnvPrefix, ".", func(name, value string) (string, any) {
		key, ok := known[name]
		if !ok {
			return "", nil
		}
		if _, isList := listKeys[key]; isList {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	return nil
}

func loadFlags(k *koanf.Koanf, flags *pflag.FlagSet) error {
	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}
	return nil
}

// EnvName returns the environment variable that sets key,
// e.g. auth.jwt_secret -> AUTHCORE_AUTH_JWT_SECRET.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
