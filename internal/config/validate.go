package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateBuffer(); err != nil {
		return err
	}
	if err := c.validateDisk(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.BufferDir == c.Paths.ClipsDir {
		return errors.New("paths.buffer_dir and paths.clips_dir must differ: pruning the ring must never touch finished clips")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.framerate":               c.Capture.Framerate,
		"capture.segment_seconds":         c.Capture.SegmentSeconds,
		"capture.restart_max_attempts":    c.Capture.RestartMaxAttempts,
		"capture.restart_backoff_seconds": c.Capture.RestartBackoffSeconds,
	}); err != nil {
		return err
	}
	if c.Capture.Framerate > 240 {
		return errors.New("capture.framerate must be 240 or lower")
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return errors.New("capture.width and capture.height must be zero (auto) or positive")
	}
	if c.Capture.OffsetX < 0 || c.Capture.OffsetY < 0 {
		return errors.New("capture.offset_x and capture.offset_y must be >= 0")
	}
	if (c.Capture.Width == 0) != (c.Capture.Height == 0) {
		return errors.New("capture.width and capture.height must both be set or both be zero for auto-detection")
	}
	return nil
}

func (c *Config) validateBuffer() error {
	if err := ensurePositiveMap(map[string]int{
		"buffer.clip_seconds":           c.Buffer.ClipSeconds,
		"buffer.retention_seconds":      c.Buffer.RetentionSeconds,
		"buffer.watch_interval_seconds": c.Buffer.WatchIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Capture.SegmentSeconds > c.Buffer.ClipSeconds {
		return errors.New("capture.segment_seconds must not exceed buffer.clip_seconds")
	}
	if c.Buffer.RetentionSeconds < c.Buffer.ClipSeconds+c.Capture.SegmentSeconds {
		return errors.New("buffer.retention_seconds must cover buffer.clip_seconds plus at least one segment")
	}
	return nil
}

func (c *Config) validateDisk() error {
	if c.Disk.LowGB <= 0 {
		return errors.New("disk.low_gb must be positive")
	}
	if c.Disk.CriticalGB <= 0 {
		return errors.New("disk.critical_gb must be positive")
	}
	if c.Disk.CriticalGB >= c.Disk.LowGB {
		return errors.New("disk.critical_gb must be below disk.low_gb")
	}
	if c.Disk.PollIntervalSeconds <= 0 {
		return errors.New("disk.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Container != "mp4" {
		return fmt.Errorf("output.container: unsupported value %q (only mp4 output is supported)", c.Output.Container)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
