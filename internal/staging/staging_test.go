package staging_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hlspress/internal/logging"
	"hlspress/internal/services"
	"hlspress/internal/staging"
)

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "720p")
	if err := staging.EnsureDir(dir); err != nil {
		t.Fatalf("first EnsureDir: %v", err)
	}
	if err := staging.EnsureDir(dir); err != nil {
		t.Fatalf("second EnsureDir should be a no-op: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory missing after EnsureDir: %v", err)
	}
}

func TestEnsureDirEmptyPath(t *testing.T) {
	err := staging.EnsureDir("  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEnsureDirConcurrentSharedRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "shared")
	variants := []string{"360p", "480p", "720p", "1080p"}

	var wg sync.WaitGroup
	errs := make([]error, len(variants))
	for i, name := range variants {
		wg.Add(1)
		go func(slot int, sub string) {
			defer wg.Done()
			errs[slot] = staging.EnsureDir(filepath.Join(root, sub))
		}(i, name)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent EnsureDir %s: %v", variants[i], err)
		}
	}
}

func TestCleanStaleRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.mp4")
	newPath := filepath.Join(dir, "new.mp4")
	subDir := filepath.Join(dir, "keepdir")
	for _, path := range []string{oldPath, newPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := staging.CleanStale(dir, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected cleanup errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldPath {
		t.Fatalf("expected only %q removed, got %+v", oldPath, result.Removed)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("fresh upload should survive: %v", err)
	}
	if _, err := os.Stat(subDir); err != nil {
		t.Fatalf("directories should survive: %v", err)
	}
}

func TestCleanStaleMissingDir(t *testing.T) {
	result := staging.CleanStale(filepath.Join(t.TempDir(), "absent"), time.Hour, nil)
	if len(result.Errors) != 0 || len(result.Removed) != 0 {
		t.Fatalf("missing dir should be a quiet no-op: %+v", result)
	}
}
