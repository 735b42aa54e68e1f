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
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	BufferDir string `toml:"buffer_dir"`
	ClipsDir  string `toml:"clips_dir"`
	LogDir    string `toml:"log_dir"`
}

// Capture contains configuration for the external ffmpeg capture process.
type Capture struct {
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	Display               string `toml:"display"`
	Width                 int    `toml:"width"`
	Height                int    `toml:"height"`
	OffsetX               int    `toml:"offset_x"`
	OffsetY               int    `toml:"offset_y"`
	Framerate             int    `toml:"framerate"`
	DrawMouse             bool   `toml:"draw_mouse"`
	Encoder               string `toml:"encoder"`
	Preset                string `toml:"preset"`
	PixelFormat           string `toml:"pixel_format"`
	SegmentSeconds        int    `toml:"segment_seconds"`
	RestartMaxAttempts    int    `toml:"restart_max_attempts"`
	RestartBackoffSeconds int    `toml:"restart_backoff_seconds"`
}

// Buffer contains configuration for the rolling segment ring.
type Buffer struct {
	ClipSeconds          int `toml:"clip_seconds"`
	RetentionSeconds     int `toml:"retention_seconds"`
	WatchIntervalSeconds int `toml:"watch_interval_seconds"`
}

// Disk contains free-space thresholds for the disk guard.
type Disk struct {
	LowGB               float64 `toml:"low_gb"`
	CriticalGB          float64 `toml:"critical_gb"`
	SaveFloorMB         int     `toml:"save_floor_mb"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
}

// Hotkeys contains configuration for the evdev trigger listener.
type Hotkeys struct {
	Enabled bool     `toml:"enabled"`
	Devices []string `toml:"devices"`
	Keys    []string `toml:"keys"`
}

// Output contains configuration for finished clips.
type Output struct {
	Container  string `toml:"container"`
	Thumbnails bool   `toml:"thumbnails"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Status contains configuration for the periodic status reporter.
type Status struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the replay daemon.
//
// Configuration sections by subsystem:
//   - Paths: buffer, clips, and log directories
//   - Capture: ffmpeg capture process settings and restart policy
//   - Buffer: clip length, ring retention, and rescan cadence
//   - Disk: free-space thresholds and poll interval
//   - Hotkeys: evdev devices and trigger keys
//   - Output: clip container and thumbnail generation
//   - Notifications: ntfy push notification settings
//   - Status: periodic status report cadence
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Buffer        Buffer        `toml:"buffer"`
	Disk          Disk          `toml:"disk"`
	Hotkeys       Hotkeys       `toml:"hotkeys"`
	Output        Output        `toml:"output"`
	Notifications Notifications `toml:"notifications"`
	Status        Status        `toml:"status"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/replay/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/replay/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("replay.toml")
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
// ClipsDir is created on a best-effort basis so the daemon can run when the
// clip destination is temporarily unavailable (saves will fail loudly).
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BufferDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ClipsDir) != "" {
		_ = os.MkdirAll(c.Paths.ClipsDir, 0o755)
	}
	return nil
}

// SocketPath returns the unix control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "replay.sock")
}

// CatalogPath returns the clip catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.LogDir, "catalog.db")
}

// PidFilePath returns the daemon pid file location.
func (c *Config) PidFilePath() string {
	return filepath.Join(c.Paths.LogDir, "replayd.pid")
}

// LockFilePath returns the daemon single-instance lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.LogDir, "replayd.lock")
}

// SegmentDuration returns the nominal duration of one capture segment.
func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.Capture.SegmentSeconds) * time.Second
}

// ClipDuration returns the configured "save the last N seconds" length.
func (c *Config) ClipDuration() time.Duration {
	return time.Duration(c.Buffer.ClipSeconds) * time.Second
}

// RetentionDuration returns how much trailing footage the ring keeps.
func (c *Config) RetentionDuration() time.Duration {
	return time.Duration(c.Buffer.RetentionSeconds) * time.Second
}

// WatchInterval returns the segment rescan cadence.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Buffer.WatchIntervalSeconds) * time.Second
}

// DiskPollInterval returns the free-space poll cadence.
func (c *Config) DiskPollInterval() time.Duration {
	return time.Duration(c.Disk.PollIntervalSeconds) * time.Second
}

// StatusInterval returns the status report cadence.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Status.IntervalSeconds) * time.Second
}

// RestartBackoff returns the initial capture restart backoff.
func (c *Config) RestartBackoff() time.Duration {
	return time.Duration(c.Capture.RestartBackoffSeconds) * time.Second
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
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
