package encoding_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"hlspress/internal/encoding"
	"hlspress/internal/hls"
	"hlspress/internal/services"
)

func TestNewSourceAssetDerivesPaths(t *testing.T) {
	asset, err := encoding.NewSourceAsset("/uploads/abc123.mp4", "movie.mp4", "/videos")
	if err != nil {
		t.Fatalf("NewSourceAsset: %v", err)
	}
	if asset.BaseName != "movie" {
		t.Fatalf("base name = %q, want movie", asset.BaseName)
	}
	if asset.OutputRoot != filepath.Join("/videos", "movie") {
		t.Fatalf("output root = %q", asset.OutputRoot)
	}
	if asset.Path != "/uploads/abc123.mp4" {
		t.Fatalf("path = %q", asset.Path)
	}
}

func TestNewSourceAssetStripsDirectoryComponents(t *testing.T) {
	asset, err := encoding.NewSourceAsset("/uploads/x.mp4", "../../etc/passwd.mp4", "/videos")
	if err != nil {
		t.Fatalf("NewSourceAsset: %v", err)
	}
	if asset.BaseName != "passwd" {
		t.Fatalf("expected path components stripped, got %q", asset.BaseName)
	}
}

func TestNewSourceAssetValidation(t *testing.T) {
	if _, err := encoding.NewSourceAsset("", "movie.mp4", "/videos"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty path: expected ErrValidation, got %v", err)
	}
	if _, err := encoding.NewSourceAsset("/uploads/x.mp4", ".mp4", "/videos"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty base: expected ErrValidation, got %v", err)
	}
}

func TestPlanJobPaths(t *testing.T) {
	asset := encoding.SourceAsset{Path: "/uploads/x.mp4", BaseName: "movie", OutputRoot: "/videos/movie"}
	variant := hls.Variant{Name: "720p", VideoBitrateKbps: 2000, AudioBitrateKbps: 192, ScaleWidth: 1280, ScaleHeight: 720}

	job := encoding.PlanJob(asset, variant, 10)
	if job.PlaylistPath != filepath.Join("/videos/movie", "720p", "movie.m3u8") {
		t.Fatalf("playlist path = %q", job.PlaylistPath)
	}
	if job.SegmentPattern != filepath.Join("/videos/movie", "720p", "movie_%03d.ts") {
		t.Fatalf("segment pattern = %q", job.SegmentPattern)
	}
	if job.VariantDir() != filepath.Join("/videos/movie", "720p") {
		t.Fatalf("variant dir = %q", job.VariantDir())
	}
}

func TestPlanJobOutputArgs(t *testing.T) {
	asset := encoding.SourceAsset{Path: "/uploads/x.mp4", BaseName: "movie", OutputRoot: "/videos/movie"}
	variant := hls.Variant{Name: "480p", VideoBitrateKbps: 1000, AudioBitrateKbps: 128, ScaleWidth: 640, ScaleHeight: 480}

	args := encoding.PlanJob(asset, variant, 10).OutputArgs()
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-vf scale=640:480",
		"-c:v libx264",
		"-c:a aac",
		"-b:v 1000k",
		"-b:a 128k",
		"-f hls",
		"-hls_time 10",
		"-hls_flags independent_segments",
		"-hls_list_size 0",
		"-hls_playlist_type vod",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("args missing %q: %s", fragment, joined)
		}
	}
	if args[len(args)-1] != filepath.Join("/videos/movie", "480p", "movie.m3u8") {
		t.Fatalf("final argument must be the playlist path, got %q", args[len(args)-1])
	}
}

func TestPlanJobDefaultsSegmentSeconds(t *testing.T) {
	asset := encoding.SourceAsset{Path: "/uploads/x.mp4", BaseName: "movie", OutputRoot: "/videos/movie"}
	variant := hls.Variant{Name: "360p", VideoBitrateKbps: 600, AudioBitrateKbps: 96, ScaleWidth: 480, ScaleHeight: 360}
	job := encoding.PlanJob(asset, variant, 0)
	if job.SegmentSeconds != 10 {
		t.Fatalf("expected default segment seconds 10, got %d", job.SegmentSeconds)
	}
}
