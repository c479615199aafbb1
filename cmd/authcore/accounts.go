// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/portfolioapp/authcore/internal/auth"
)

// NewAccountsCmd creates the accounts subcommand.
func NewAccountsCmd() *cobra.Command {
	return newAccountsCmd(nil)
}

func newAccountsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and manage accounts",
		Long:  `Administrative account operations run directly against the configured storage.`,
	}

	var (
		role       string
		jsonOutput bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(cmd *cobra.Command, svc *auth.Service) error {
				var (
					accounts []*auth.Account
					err      error
				)
				if role != "" {
					r, perr := auth.ParseRole(role)
					if perr != nil {
						return perr //nolint:wrapcheck // already coded by auth
					}
					accounts, err = svc.ListAccountsByRole(cmd.Context(), r)
				} else {
					accounts, err = svc.ListAccounts(cmd.Context())
				}
				if err != nil {
					return err //nolint:wrapcheck // already coded by auth
				}
				if jsonOutput {
					return writeAccountsJSON(cmd.OutOrStdout(), accounts)
				}
				writeAccountsTable(cmd.OutOrStdout(), accounts, time.Now())
				return nil
			})
		},
	}
	list.Flags().StringVar(&role, "role", "", "only list accounts with this role (USER or ADMIN)")
	list.Flags().BoolVar(&jsonOutput, "json", false, "output accounts as JSON")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, deps, func(cmd *cobra.Command, svc *auth.Service) error {
				n, err := svc.CountAccounts(cmd.Context())
				if err != nil {
					return err //nolint:wrapcheck // already coded by auth
				}
				cmd.Println(n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ulid.ParseStrict(args[0])
			if err != nil {
				return oops.Code("INVALID_ACCOUNT_ID").With("input", args[0]).Wrap(err)
			}
			return withService(cmd, deps, func(cmd *cobra.Command, svc *auth.Service) error {
				exists, err := svc.AccountExists(cmd.Context(), id)
				if err != nil {
					return err //nolint:wrapcheck // already coded by auth
				}
				if !exists {
					return oops.Code(auth.CodeAccountNotFound).
						With("account_id", id.String()).
						Errorf("account %s not found", id)
				}
				if err := svc.DeleteAccount(cmd.Context(), id); err != nil {
					return err //nolint:wrapcheck // already coded by auth
				}
				cmd.Printf("Deleted account %s\n", id)
				return nil
			})
		},
	})

	return cmd
}

// withService builds an account service from configuration and runs fn.
// Notifications are discarded.
func withService(cmd *cobra.Command, deps *Deps, fn func(*cobra.Command, *auth.Service) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	accounts, _, closeAccounts, err := openAccounts(cmd.Context(), cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	issuer, err := newIssuer(cfg.Auth)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(accounts, auth.NewArgon2idHasher(), issuer, auth.WithLogger(logger))
	if err != nil {
		return oops.With("operation", "create account service").Wrap(err)
	}
	return fn(cmd, svc)
}

func writeAccountsTable(out io.Writer, accounts []*auth.Account, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tSTATE\tCREATED")
	for _, a := range accounts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Email, a.FullName, a.Role, a.State(now), a.CreatedAt.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
}

type accountJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

func writeAccountsJSON(out io.Writer, accounts []*auth.Account) error {
	rows := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, accountJSON{
			ID:        a.ID.String(),
			Email:     a.Email,
			FullName:  a.FullName,
			Role:      string(a.Role),
			Enabled:   a.Enabled,
			CreatedAt: a.CreatedAt.UTC(),
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
