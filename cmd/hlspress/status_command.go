package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"hlspress/internal/config"
	"hlspress/internal/deps"
	"hlspress/internal/runs"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and run counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			healthy := checkDaemonHealth(cfg.Paths.APIBind)
			if healthy {
				fmt.Fprintln(out, statusLine("Daemon", "OK", "listening on "+cfg.Paths.APIBind, ansiGreen, colorize))
			} else {
				fmt.Fprintln(out, statusLine("Daemon", "DOWN", "no response from "+cfg.Paths.APIBind, ansiRed, colorize))
			}

			for _, status := range deps.CheckBinaries(deps.Required(cfg)) {
				if status.Available {
					fmt.Fprintln(out, statusLine(status.Name, "OK", status.Command, ansiGreen, colorize))
				} else {
					fmt.Fprintln(out, statusLine(status.Name, "MISSING", status.Detail, ansiRed, colorize))
				}
			}

			store, err := runs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("run stats: %w", err)
			}
			total := 0
			for _, count := range stats {
				total += count
			}
			fmt.Fprintln(out, statusLine("Runs", fmt.Sprintf("%d", total),
				fmt.Sprintf("%d encoding, %d completed, %d failed",
					stats[runs.StatusEncoding], stats[runs.StatusCompleted], stats[runs.StatusFailed]),
				colorForFailures(stats[runs.StatusFailed]), colorize))
			return nil
		},
	}
}

func checkDaemonHealth(bind string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + bind + "/healthz")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return resp.StatusCode == http.StatusOK && payload.Status == "ok"
}

func statusLine(label, state, message, color string, colorize bool) string {
	line := fmt.Sprintf("  %-10s [%s] %s", label+":", state, message)
	if colorize && color != "" {
		return color + line + ansiReset
	}
	return line
}

func colorForFailures(failed int) string {
	if failed > 0 {
		return ansiYellow
	}
	return ansiGreen
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
