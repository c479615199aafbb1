// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portfolioapp/authcore/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// isolateEnv clears configuration inherited from the environment and points
// XDG lookups at an empty directory.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	keys := []string{
		"http.addr", "http.allowed_origins", "metrics.addr",
		"database.url", "database.driver", "database.auto_migrate",
		"auth.jwt_secret", "notify.smtp_addr", "log.format", "log.level",
	}
	names := []string{config.DatabaseURLEnv}
	for _, key := range keys {
		names = append(names, config.EnvName(key))
	}
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	configFile = ""

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// memoryConfig is a complete in-memory configuration listening on an
// ephemeral port with metrics disabled.
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	path := writeConfig(t, `
http:
  addr: "127.0.0.1:0"
  shutdown_timeout: 5s
metrics:
  addr: ""
database:
  driver: memory
auth:
  jwt_secret: "`+testSecret+`"
log:
  level: error
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	return cfg
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
