// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/portfolioapp/authcore/internal/config"
	"github.com/portfolioapp/authcore/internal/xdg"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := config.Keys(configFile, cmd.Flags())
			if err != nil {
				return err //nolint:wrapcheck // already coded by config
			}
			for _, key := range config.SortedKeys(keys) {
				cmd.Printf("%s = %v\n", key, keys[key])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration is complete and consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err //nolint:wrapcheck // already coded by config
			}
			cmd.Println("Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err //nolint:wrapcheck // already coded by config
			}
			cmd.Println(string(data))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file populated with the defaults",
		Long: `Write the built-in defaults to the file named by --config, or to
XDG_CONFIG_HOME/authcore/config.yaml. An existing file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := initConfigFile(configFile, force)
			if err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

// initConfigFile writes the default configuration to path, or to the XDG
// config file when path is empty, and returns the path written.
func initConfigFile(path string, force bool) (string, error) {
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return "", err //nolint:wrapcheck // already coded by xdg
		}
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", oops.Code("CONFIG_EXISTS").With("path", path).Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	data, err := config.DefaultYAML()
	if err != nil {
		return "", err //nolint:wrapcheck // already coded by config
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err //nolint:wrapcheck // already coded by xdg
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}
