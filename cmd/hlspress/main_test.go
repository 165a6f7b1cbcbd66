package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"hlspress/internal/config"
	"hlspress/internal/runs"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	configPath := filepath.Join(root, "hlspress.toml")
	content := fmt.Sprintf(`[paths]
upload_dir = %q
output_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"
`,
		filepath.Join(root, "uploads"),
		filepath.Join(root, "videos"),
		filepath.Join(root, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, "Wrote sample configuration") {
		t.Fatalf("output = %q", output)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[[variant]]") {
		t.Fatalf("sample missing variant ladder:\n%s", data)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)
	output, err := runCLI(t, "config", "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(output, "Configuration valid") {
		t.Fatalf("output = %q", output)
	}
}

func TestConfigShowListsLadder(t *testing.T) {
	configPath := writeTestConfig(t)
	output, err := runCLI(t, "config", "show", "-c", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, fragment := range []string{"Upload dir:", "Variant ladder:", "1080p", "480p"} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, output)
		}
	}
}

func TestRunsListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)
	output, err := runCLI(t, "runs", "list", "-c", configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(output, "No runs recorded") {
		t.Fatalf("output = %q", output)
	}
}

func seedRun(t *testing.T, configPath string) *runs.Run {
	t.Helper()
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	run := &runs.Run{
		ID:             uuid.NewString(),
		SourceFilename: "movie.mp4",
		BaseName:       "movie",
		OutputRoot:     filepath.Join(cfg.Paths.OutputDir, "movie"),
	}
	jobs := []runs.Job{
		{RunID: run.ID, Variant: "720p", Resolution: "1280x720", VideoKbps: 2000},
	}
	if err := store.Create(context.Background(), run, jobs); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return run
}

func TestRunsListShowsSeededRun(t *testing.T) {
	configPath := writeTestConfig(t)
	run := seedRun(t, configPath)

	output, err := runCLI(t, "runs", "list", "-c", configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(output, run.ID) || !strings.Contains(output, "movie.mp4") {
		t.Fatalf("output missing run:\n%s", output)
	}
}

func TestRunsShowIncludesVariants(t *testing.T) {
	configPath := writeTestConfig(t)
	run := seedRun(t, configPath)

	output, err := runCLI(t, "runs", "show", run.ID, "-c", configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	for _, fragment := range []string{run.ID, "720p", "1280x720", "2000k"} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, output)
		}
	}
}

func TestRenderTableAlignsRequestedColumns(t *testing.T) {
	output := renderTable(
		[]string{"Variant", "Progress"},
		[][]string{{"720p", "5%"}, {"1080p", "100%"}},
		2,
	)
	for _, fragment := range []string{"VARIANT", "│       5% │", "│     100% │", "│ 720p    │"} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, output)
		}
	}
}

func TestRunsShowUnknownID(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, "runs", "show", "does-not-exist", "-c", configPath); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}
