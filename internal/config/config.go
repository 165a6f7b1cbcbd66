package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"hlspress/internal/hls"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// FFmpeg contains configuration for the external encoder processes.
type FFmpeg struct {
	Binary            string `toml:"binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	MaxConcurrent     int    `toml:"max_concurrent"`
	JobTimeoutMinutes int    `toml:"job_timeout_minutes"`
	SegmentSeconds    int    `toml:"segment_seconds"`
}

// Uploads contains limits and retention for the upload scratch directory.
type Uploads struct {
	MaxUploadMiB    int `toml:"max_upload_mib"`
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hlspress.
//
// Sections by subsystem:
//   - Paths: upload scratch dir, output root, logs, API bind address
//   - FFmpeg: encoder binaries, concurrency cap, per-job watchdog, segmenting
//   - Variants: the rendition ladder, in playback order
//   - Uploads: upload size limit and scratch retention
//   - Logging: log format and level
type Config struct {
	Paths    Paths         `toml:"paths"`
	FFmpeg   FFmpeg        `toml:"ffmpeg"`
	Variants []hls.Variant `toml:"variant"`
	Uploads  Uploads       `toml:"uploads"`
	Logging  Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hlspress/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hlspress.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Ladder returns the configured rendition ladder in declared order.
func (c *Config) Ladder() []hls.Variant {
	ladder := make([]hls.Variant, len(c.Variants))
	copy(ladder, c.Variants)
	return ladder
}

// EncodeConcurrency returns the encode fan-out cap. Zero in config means
// "one slot per ladder variant" so a whole run fans out unbounded.
func (c *Config) EncodeConcurrency() int {
	if c.FFmpeg.MaxConcurrent > 0 {
		return c.FFmpeg.MaxConcurrent
	}
	return len(c.Variants)
}

// JobTimeout returns the per-job watchdog duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.FFmpeg.JobTimeoutMinutes) * time.Minute
}

// StaleUploadAge returns how old an upload scratch file must be before the
// janitor removes it.
func (c *Config) StaleUploadAge() time.Duration {
	return time.Duration(c.Uploads.StaleAfterHours) * time.Hour
}

// MaxUploadBytes returns the multipart upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxUploadMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
