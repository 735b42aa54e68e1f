package config

const (
	defaultBufferDir             = "~/.local/share/replay/buffer"
	defaultClipsDir              = "~/Videos/Replay"
	defaultLogDir                = "~/.local/share/replay/logs"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultDisplay               = ":0.0"
	defaultFramerate             = 60
	defaultEncoder               = "libx264"
	defaultPreset                = "veryfast"
	defaultPixelFormat           = "yuv420p"
	defaultSegmentSeconds        = 10
	defaultRestartMaxAttempts    = 5
	defaultRestartBackoffSeconds = 1
	defaultClipSeconds           = 120
	defaultWatchIntervalSeconds  = 1
	defaultDiskLowGB             = 5.0
	defaultDiskCriticalGB        = 2.0
	defaultSaveFloorMB           = 300
	defaultDiskPollSeconds       = 5
	defaultContainer             = "mp4"
	defaultNotifyTimeoutSeconds  = 10
	defaultStatusSeconds         = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 7
)

// retentionFactor sizes the ring relative to the clip length when
// retention_seconds is omitted: enough for one full clip plus headroom for
// a save that lands while the ring is mid-rotation.
const retentionFactor = 3

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BufferDir: defaultBufferDir,
			ClipsDir:  defaultClipsDir,
			LogDir:    defaultLogDir,
		},
		Capture: Capture{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			Framerate:             defaultFramerate,
			DrawMouse:             true,
			Encoder:               defaultEncoder,
			Preset:                defaultPreset,
			PixelFormat:           defaultPixelFormat,
			SegmentSeconds:        defaultSegmentSeconds,
			RestartMaxAttempts:    defaultRestartMaxAttempts,
			RestartBackoffSeconds: defaultRestartBackoffSeconds,
		},
		Buffer: Buffer{
			ClipSeconds:          defaultClipSeconds,
			RetentionSeconds:     defaultClipSeconds * retentionFactor,
			WatchIntervalSeconds: defaultWatchIntervalSeconds,
		},
		Disk: Disk{
			LowGB:               defaultDiskLowGB,
			CriticalGB:          defaultDiskCriticalGB,
			SaveFloorMB:         defaultSaveFloorMB,
			PollIntervalSeconds: defaultDiskPollSeconds,
		},
		Hotkeys: Hotkeys{
			Enabled: true,
			Keys:    []string{"F4", "F5"},
		},
		Output: Output{
			Container:  defaultContainer,
			Thumbnails: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Status: Status{
			IntervalSeconds: defaultStatusSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
