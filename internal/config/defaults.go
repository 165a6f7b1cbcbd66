package config

import "hlspress/internal/hls"

const (
	defaultUploadDir         = "~/.local/share/hlspress/uploads"
	defaultOutputDir         = "~/.local/share/hlspress/videos"
	defaultLogDir            = "~/.local/share/hlspress/logs"
	defaultAPIBind           = "127.0.0.1:7632"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultJobTimeoutMinutes = 120
	defaultSegmentSeconds    = 10
	defaultMaxUploadMiB      = 4096
	defaultStaleAfterHours   = 24
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:            defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			MaxConcurrent:     0,
			JobTimeoutMinutes: defaultJobTimeoutMinutes,
			SegmentSeconds:    defaultSegmentSeconds,
		},
		Variants: hls.DefaultLadder(),
		Uploads: Uploads{
			MaxUploadMiB:    defaultMaxUploadMiB,
			StaleAfterHours: defaultStaleAfterHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
