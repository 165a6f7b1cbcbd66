package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hlspress/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if len(cfg.Ladder()) != 4 {
		t.Fatalf("expected default 4-variant ladder, got %d", len(cfg.Ladder()))
	}
	if cfg.FFmpeg.Binary != "ffmpeg" {
		t.Fatalf("expected default ffmpeg binary, got %q", cfg.FFmpeg.Binary)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("expected absolute output dir, got %q", cfg.Paths.OutputDir)
	}
}

func TestLoadParsesLadderOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
upload_dir = "` + filepath.Join(dir, "up") + `"
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[[variant]]
name = "540p"
video_bitrate_kbps = 1800
audio_bitrate_kbps = 128
scale_width = 960
scale_height = 540
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be found", path)
	}
	ladder := cfg.Ladder()
	if len(ladder) != 1 || ladder[0].Name != "540p" {
		t.Fatalf("ladder override not applied: %+v", ladder)
	}
	if cfg.EncodeConcurrency() != 1 {
		t.Fatalf("expected concurrency to default to ladder size, got %d", cfg.EncodeConcurrency())
	}
}

func TestLoadRejectsInvalidLadder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[[variant]]
name = "720p"
video_bitrate_kbps = 0
audio_bitrate_kbps = 192
scale_width = 1280
scale_height = 720
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for zero bitrate")
	}
}

func TestLoadRejectsSharedUploadOutputDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	shared := filepath.Join(dir, "videos")
	content := `
[paths]
upload_dir = "` + shared + `"
output_dir = "` + shared + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared-directory error, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config not found after CreateSample")
	}
	ladder := cfg.Ladder()
	if len(ladder) != 4 || ladder[3].Name != "1080p" {
		t.Fatalf("sample ladder unexpected: %+v", ladder)
	}
}
