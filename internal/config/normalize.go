package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeBuffer()
	c.normalizeDisk()
	if err := c.normalizeHotkeys(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BufferDir) == "" {
		c.Paths.BufferDir = defaultBufferDir
	}
	if c.Paths.BufferDir, err = expandPath(c.Paths.BufferDir); err != nil {
		return fmt.Errorf("paths.buffer_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ClipsDir) == "" {
		c.Paths.ClipsDir = defaultClipsDir
	}
	if c.Paths.ClipsDir, err = expandPath(c.Paths.ClipsDir); err != nil {
		return fmt.Errorf("paths.clips_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = defaultFFmpegBinary
	}
	c.Capture.FFprobeBinary = strings.TrimSpace(c.Capture.FFprobeBinary)
	if c.Capture.FFprobeBinary == "" {
		c.Capture.FFprobeBinary = defaultFFprobeBinary
	}
	c.Capture.Display = strings.TrimSpace(c.Capture.Display)
	if c.Capture.Display == "" {
		if value, ok := os.LookupEnv("DISPLAY"); ok && strings.TrimSpace(value) != "" {
			c.Capture.Display = strings.TrimSpace(value)
		} else {
			c.Capture.Display = defaultDisplay
		}
	}
	if c.Capture.Framerate <= 0 {
		c.Capture.Framerate = defaultFramerate
	}
	c.Capture.Encoder = strings.TrimSpace(c.Capture.Encoder)
	if c.Capture.Encoder == "" {
		c.Capture.Encoder = defaultEncoder
	}
	c.Capture.Preset = strings.TrimSpace(c.Capture.Preset)
	if c.Capture.Preset == "" {
		c.Capture.Preset = defaultPreset
	}
	c.Capture.PixelFormat = strings.TrimSpace(c.Capture.PixelFormat)
	if c.Capture.PixelFormat == "" {
		c.Capture.PixelFormat = defaultPixelFormat
	}
	if c.Capture.SegmentSeconds <= 0 {
		c.Capture.SegmentSeconds = defaultSegmentSeconds
	}
	if c.Capture.RestartMaxAttempts <= 0 {
		c.Capture.RestartMaxAttempts = defaultRestartMaxAttempts
	}
	if c.Capture.RestartBackoffSeconds <= 0 {
		c.Capture.RestartBackoffSeconds = defaultRestartBackoffSeconds
	}
	return nil
}

func (c *Config) normalizeBuffer() {
	if c.Buffer.ClipSeconds <= 0 {
		c.Buffer.ClipSeconds = defaultClipSeconds
	}
	if c.Buffer.RetentionSeconds <= 0 {
		c.Buffer.RetentionSeconds = c.Buffer.ClipSeconds * retentionFactor
	}
	if c.Buffer.WatchIntervalSeconds <= 0 {
		c.Buffer.WatchIntervalSeconds = defaultWatchIntervalSeconds
	}
}

func (c *Config) normalizeDisk() {
	if c.Disk.LowGB <= 0 {
		c.Disk.LowGB = defaultDiskLowGB
	}
	if c.Disk.CriticalGB <= 0 {
		c.Disk.CriticalGB = defaultDiskCriticalGB
	}
	if c.Disk.SaveFloorMB < 0 {
		c.Disk.SaveFloorMB = defaultSaveFloorMB
	}
	if c.Disk.PollIntervalSeconds <= 0 {
		c.Disk.PollIntervalSeconds = defaultDiskPollSeconds
	}
}

func (c *Config) normalizeHotkeys() error {
	devices := make([]string, 0, len(c.Hotkeys.Devices))
	for _, device := range c.Hotkeys.Devices {
		trimmed := strings.TrimSpace(device)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("hotkeys.devices: %w", err)
		}
		devices = append(devices, expanded)
	}
	c.Hotkeys.Devices = devices

	keys := make([]string, 0, len(c.Hotkeys.Keys))
	seen := make(map[string]struct{}, len(c.Hotkeys.Keys))
	for _, key := range c.Hotkeys.Keys {
		normalized := strings.ToUpper(strings.TrimSpace(key))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		keys = append(keys, normalized)
	}
	if len(keys) == 0 {
		keys = []string{"F4", "F5"}
	}
	c.Hotkeys.Keys = keys
	return nil
}

func (c *Config) normalizeOutput() {
	c.Output.Container = strings.ToLower(strings.TrimSpace(c.Output.Container))
	if c.Output.Container == "" {
		c.Output.Container = defaultContainer
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
	if c.Status.IntervalSeconds <= 0 {
		c.Status.IntervalSeconds = defaultStatusSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
