package hls

import (
	"errors"
	"fmt"
	"strings"
)

// Variant describes one target rendition produced from a source upload.
type Variant struct {
	Name             string `toml:"name"`
	VideoBitrateKbps int    `toml:"video_bitrate_kbps"`
	AudioBitrateKbps int    `toml:"audio_bitrate_kbps"`
	ScaleWidth       int    `toml:"scale_width"`
	ScaleHeight      int    `toml:"scale_height"`
}

// Resolution returns the playlist RESOLUTION attribute value.
func (v Variant) Resolution() string {
	return fmt.Sprintf("%dx%d", v.ScaleWidth, v.ScaleHeight)
}

// Bandwidth returns the playlist BANDWIDTH attribute value in bits per second.
func (v Variant) Bandwidth() int {
	return v.VideoBitrateKbps * 1000
}

// Scale returns the ffmpeg scale filter argument.
func (v Variant) Scale() string {
	return fmt.Sprintf("%d:%d", v.ScaleWidth, v.ScaleHeight)
}

// Validate checks a single ladder entry.
func (v Variant) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("variant name must be set")
	}
	if strings.ContainsAny(v.Name, "/\\") {
		return fmt.Errorf("variant %q: name must not contain path separators", v.Name)
	}
	if v.VideoBitrateKbps <= 0 {
		return fmt.Errorf("variant %q: video_bitrate_kbps must be positive", v.Name)
	}
	if v.AudioBitrateKbps <= 0 {
		return fmt.Errorf("variant %q: audio_bitrate_kbps must be positive", v.Name)
	}
	if v.ScaleWidth <= 0 || v.ScaleHeight <= 0 {
		return fmt.Errorf("variant %q: scale dimensions must be positive", v.Name)
	}
	if v.ScaleWidth%2 != 0 || v.ScaleHeight%2 != 0 {
		return fmt.Errorf("variant %q: scale dimensions must be even for H.264", v.Name)
	}
	return nil
}

// DefaultLadder returns the built-in rendition ladder, lowest quality first.
func DefaultLadder() []Variant {
	return []Variant{
		{Name: "360p", VideoBitrateKbps: 600, AudioBitrateKbps: 96, ScaleWidth: 480, ScaleHeight: 360},
		{Name: "480p", VideoBitrateKbps: 1000, AudioBitrateKbps: 128, ScaleWidth: 640, ScaleHeight: 480},
		{Name: "720p", VideoBitrateKbps: 2000, AudioBitrateKbps: 192, ScaleWidth: 1280, ScaleHeight: 720},
		{Name: "1080p", VideoBitrateKbps: 5500, AudioBitrateKbps: 192, ScaleWidth: 1920, ScaleHeight: 1080},
	}
}

// ValidateLadder checks every entry and rejects duplicate names.
func ValidateLadder(ladder []Variant) error {
	if len(ladder) == 0 {
		return errors.New("rendition ladder must not be empty")
	}
	seen := make(map[string]struct{}, len(ladder))
	for _, variant := range ladder {
		if err := variant.Validate(); err != nil {
			return err
		}
		name := strings.ToLower(strings.TrimSpace(variant.Name))
		if _, dup := seen[name]; dup {
			return fmt.Errorf("variant %q: duplicate name", variant.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
