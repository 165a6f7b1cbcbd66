package hls

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hlspress/internal/services"
)

// MasterFilename is the name of the top-level playlist inside an output root.
const MasterFilename = "master.m3u8"

// RenderMaster builds the master playlist content for the given ladder.
// Sub-playlist URIs are relative to the output root: <variant>/<baseName>.m3u8.
func RenderMaster(baseName string, ladder []Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, variant := range ladder {
		b.WriteString(fmt.Sprintf(
			"#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n",
			variant.Bandwidth(),
			variant.Resolution(),
		))
		b.WriteString(variant.Name + "/" + baseName + ".m3u8\n")
	}
	return b.String()
}

// WriteMaster renders the master playlist and writes it into outputRoot.
// The write goes to a temp file first and is renamed into place so a reader
// never observes a half-written manifest.
func WriteMaster(outputRoot, baseName string, ladder []Variant) (string, error) {
	content := RenderMaster(baseName, ladder)
	finalPath := filepath.Join(outputRoot, MasterFilename)

	tmp, err := os.CreateTemp(outputRoot, MasterFilename+".*")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "manifest", "create temp file", "Failed to stage master playlist", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrTransient, "manifest", "write", "Failed to write master playlist", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrTransient, "manifest", "close", "Failed to flush master playlist", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrTransient, "manifest", "rename", "Failed to publish master playlist", err)
	}
	return finalPath, nil
}
