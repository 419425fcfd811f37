// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactdir/contactdir/internal/config"
)

// statusProbeTimeout bounds each health request.
const statusProbeTimeout = 3 * time.Second

// ProbeStatus holds the result of one health probe.
type ProbeStatus struct {
	Probe   string `json:"probe"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running ContactDir server",
		Long: `Query the liveness and readiness probes of a running server over its
observability endpoint. Readiness covers the database and cache connections.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("server.observability_addr", "", "health and metrics listen address")

	return cmd
}

func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	baseURL := "http://" + cfg.Server.ObservabilityAddr
	statuses := []ProbeStatus{
		queryProbe(baseURL, "liveness"),
		queryProbe(baseURL, "readiness"),
	}

	if statusCfg.jsonOutput {
		out, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(formatStatusTable(statuses))
	return nil
}

// queryProbe hits one healthz endpoint and reports the outcome.
func queryProbe(baseURL, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}

	client := &http.Client{Timeout: statusProbeTimeout}
	resp, err := client.Get(baseURL + "/healthz/" + probe)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("probe returned %d", resp.StatusCode)
		return status
	}

	status.Healthy = true
	return status
}

// formatStatusTable formats probe results as an aligned table.
func formatStatusTable(statuses []ProbeStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PROBE\tHEALTHY\tERROR")
	for _, s := range statuses {
		errMsg := s.Error
		if errMsg == "" {
			errMsg = "-"
		}
		fmt.Fprintf(w, "%s\t%v\t%s\n", s.Probe, s.Healthy, errMsg)
	}

	_ = w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
