package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ashureev/energy-pipeline/internal/domain"
)

type schedulerView struct {
	State         string     `json:"state"`
	RunsCompleted int        `json:"runs_completed"`
	MaxRuns       int        `json:"max_runs"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

type statusView struct {
	Message           string        `json:"message"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty"`
	Scheduler         schedulerView `json:"scheduler"`
	CooldownRemaining int64         `json:"cooldown_remaining_seconds"`
}

type historyView struct {
	Files []domain.RunRecord `json:"files"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, s statusView) {
	fmt.Fprintf(w, "State:    %s\n", s.Scheduler.State)
	if s.Scheduler.State == "running_continuous" {
		fmt.Fprintf(w, "Runs:     %d/%d\n", s.Scheduler.RunsCompleted, s.Scheduler.MaxRuns)
		if s.Scheduler.StartedAt != nil {
			fmt.Fprintf(w, "Started:  %s\n", s.Scheduler.StartedAt.Local().Format(time.DateTime))
		}
	}
	if s.CooldownRemaining > 0 {
		fmt.Fprintf(w, "Cooldown: %s\n", time.Duration(s.CooldownRemaining)*time.Second)
	}
	if s.Message != "" {
		fmt.Fprintf(w, "Status:   %s\n", s.Message)
	}
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single simulation and wait for the produced file",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var rec domain.RunRecord
			if err := newAPIClient(cmd).do(cmd, http.MethodPost, "/api/simulate/once", &rec); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "File %q created and uploaded to storage.\n", rec.Filename)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a continuous simulation sequence",
		Long: `Start a continuous simulation sequence on the server.

The first run happens immediately; further runs follow on the server's
interval until the run cap or duration cap is reached, or until
"simctl stop" is called.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var s statusView
			if err := newAPIClient(cmd).do(cmd, http.MethodPost, "/api/simulate/continuous", &s); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printStatus(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the continuous simulation sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var s statusView
			if err := newAPIClient(cmd).do(cmd, http.MethodPost, "/api/simulate/stop", &s); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printStatus(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler state and current status message",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var s statusView
			if err := newAPIClient(cmd).do(cmd, http.MethodGet, "/api/simulate/status", &s); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printStatus(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

var historyHeader = table.Row{
	"#",
	"Filename",
	"Produced At",
}

func renderHistory(files []domain.RunRecord) string {
	t := table.NewWriter()
	t.AppendHeader(historyHeader)
	for i, f := range files {
		t.AppendRow(table.Row{
			i + 1,
			f.Filename,
			f.ProducedAt.Local().Format(time.DateTime),
		})
	}
	return t.Render()
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List produced files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			var h historyView
			if err := newAPIClient(cmd).do(cmd, http.MethodGet, "/api/simulate/history", &h); err != nil {
				return err
			}
			if limit > 0 && len(h.Files) > limit {
				h.Files = h.Files[:limit]
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			if len(h.Files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files produced yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(h.Files))
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many files (0 = all)")
	return cmd
}
