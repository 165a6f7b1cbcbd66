package config

import (
	"errors"
	"fmt"

	"hlspress/internal/hls"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := hls.ValidateLadder(c.Variants); err != nil {
		return fmt.Errorf("variant ladder: %w", err)
	}
	if err := c.validateUploads(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == c.Paths.OutputDir {
		return errors.New("paths.upload_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.MaxConcurrent < 0 {
		return errors.New("ffmpeg.max_concurrent must not be negative")
	}
	if c.FFmpeg.SegmentSeconds < 1 {
		return errors.New("ffmpeg.segment_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.MaxUploadMiB <= 0 {
		return errors.New("uploads.max_upload_mib must be positive")
	}
	if c.Uploads.StaleAfterHours <= 0 {
		return errors.New("uploads.stale_after_hours must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
