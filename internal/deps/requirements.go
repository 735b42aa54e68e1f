package deps

import "replay/internal/config"

// Requirements lists the external binaries the daemon shells out to.
// ffmpeg and ffprobe are hard requirements; the X11 helpers only improve
// clip titles and region auto-detection.
func Requirements(cfg *config.Config) []Requirement {
	ffmpegBinary := "ffmpeg"
	ffprobeBinary := "ffprobe"
	if cfg != nil {
		if cfg.Capture.FFmpegBinary != "" {
			ffmpegBinary = cfg.Capture.FFmpegBinary
		}
		if cfg.Capture.FFprobeBinary != "" {
			ffprobeBinary = cfg.Capture.FFprobeBinary
		}
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Screen capture and clip assembly",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Clip validation",
		},
		{
			Name:        "xprop",
			Command:     "xprop",
			Description: "Active window titles for clip names",
			Optional:    true,
		},
		{
			Name:        "xrandr",
			Command:     "xrandr",
			Description: "Capture region auto-detection",
			Optional:    true,
		},
	}
}

// Check evaluates the daemon's requirements against the current PATH.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}
