// Package staging owns filesystem preparation for transcode output and the
// upload scratch directory.
package staging

import (
	"os"
	"strings"

	"hlspress/internal/services"
)

// EnsureDir creates the directory and any missing parents. An existing
// directory is success, so concurrent callers staging sibling variant
// directories under a shared root never race each other into an error.
func EnsureDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrValidation, "staging", "ensure directory", "Empty path", nil)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "staging", "ensure directory", "Failed to create "+path, err)
	}
	return nil
}
