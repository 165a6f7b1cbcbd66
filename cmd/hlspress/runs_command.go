package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"hlspress/internal/config"
	"hlspress/internal/runs"
)

func newRunsCommand(configFlag *string) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect transcode run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, *configFlag, "")
		},
	}

	var statusFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transcode runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, *configFlag, statusFilter)
		},
	}
	listCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, encoding, completed, failed)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with per-variant detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd, *configFlag, args[0])
		},
	}

	runsCmd.AddCommand(listCmd)
	runsCmd.AddCommand(showCmd)
	return runsCmd
}

func openRunStore(configPath string) (*runs.Store, error) {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := runs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return store, nil
}

func listRuns(cmd *cobra.Command, configPath, statusFilter string) error {
	store, err := openRunStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var statuses []runs.Status
	if statusFilter != "" {
		status, ok := runs.ParseStatus(statusFilter)
		if !ok {
			return fmt.Errorf("unknown status %q", statusFilter)
		}
		statuses = append(statuses, status)
	}

	records, err := store.List(cmd.Context(), statuses...)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.ID,
			record.SourceFilename,
			string(record.Status),
			record.CreatedAt.Local().Format(time.DateTime),
			record.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Source", "Status", "Created", "Error"}, rows))
	return nil
}

func showRun(cmd *cobra.Command, configPath, runID string) error {
	store, err := openRunStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if record == nil {
		return fmt.Errorf("run %q not found", runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", record.ID)
	fmt.Fprintf(out, "Source:   %s\n", record.SourceFilename)
	fmt.Fprintf(out, "Output:   %s\n", record.OutputRoot)
	fmt.Fprintf(out, "Status:   %s\n", record.Status)
	if record.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", record.ManifestPath)
	}
	if record.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", record.ErrorMessage)
	}

	jobs, err := store.JobsForRun(cmd.Context(), record.ID)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.Variant,
			job.Resolution,
			strconv.Itoa(job.VideoKbps) + "k",
			string(job.Status),
			fmt.Sprintf("%.0f%%", job.ProgressPercent),
			job.ErrorMessage,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Variant", "Resolution", "Bitrate", "Status", "Progress", "Error"}, rows, 3, 5))
	return nil
}

// renderTable renders rows under headers in the rounded style. rightCols are
// 1-based column numbers to right-align; bitrate and progress columns read
// better that way.
func renderTable(headers []string, rows [][]string, rightCols ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, name := range headers {
		header[i] = name
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		tw.AppendRow(cells)
	}

	configs := make([]table.ColumnConfig, 0, len(rightCols))
	for _, col := range rightCols {
		configs = append(configs, table.ColumnConfig{
			Number:      col,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
