package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hlspress/internal/logging"
)

// CleanStaleResult contains the outcome of a stale upload cleanup pass.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes upload scratch files older than maxAge. A source file is
// normally deleted right after its run succeeds; anything lingering here
// belongs to a failed or abandoned run.
func CleanStale(uploadDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	uploadDir = strings.TrimSpace(uploadDir)
	if uploadDir == "" {
		return result
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: uploadDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(uploadDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				if logger != nil {
					logger.Warn("failed to remove stale upload",
						logging.String("path", path),
						logging.Error(err),
					)
				}
			} else {
				result.Removed = append(result.Removed, path)
				if logger != nil {
					logger.Info("removed stale upload",
						logging.String("path", path),
						logging.Duration("age", time.Since(info.ModTime())),
					)
				}
			}
		}
	}

	return result
}
