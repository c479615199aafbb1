// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// statusTimeout bounds each probe request.
const statusTimeout = 3 * time.Second

// probePaths are the health endpoints served by the observability server.
var probePaths = []string{"/healthz/liveness", "/healthz/readiness"}

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe   string `json:"probe"`
	Healthy bool   `json:"healthy"`
	Code    int    `json:"code,omitempty"`
	Body    string `json:"body,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running authcore server",
		Long: `Query the liveness and readiness probes of a running server at the
configured metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command. It fails when any probe is unhealthy.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if appCfg.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "metrics.addr").Errorf("metrics.addr is empty; the server exposes no probes")
	}

	client := &http.Client{Timeout: statusTimeout}
	statuses := queryProbes(cmd.Context(), client, baseURL(appCfg.Metrics.Addr))

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy {
			return oops.Code("SERVER_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

// baseURL turns a listen address into a URL reachable from this host.
// A wildcard host such as ":9100" is probed on loopback.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func queryProbes(ctx context.Context, client *http.Client, base string) []ProbeStatus {
	out := make([]ProbeStatus, 0, len(probePaths))
	for _, path := range probePaths {
		out = append(out, queryProbe(ctx, client, base, path))
	}
	return out
}

func queryProbe(ctx context.Context, client *http.Client, base, path string) ProbeStatus {
	status := ProbeStatus{Probe: strings.TrimPrefix(path, "/healthz/")}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	status.Code = resp.StatusCode
	status.Body = strings.TrimSpace(string(body))
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t------")
	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		detail := s.Body
		if s.Error != "" {
			detail = s.Error
		} else if s.Code != 0 {
			detail = fmt.Sprintf("%d %s", s.Code, s.Body)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Probe, state, detail)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return string(data), nil
}
