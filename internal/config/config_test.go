package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"replay/internal/config"
)

func TestLoadDefaultsExpandPathsAndEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DISPLAY", ":7.0")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantBuffer := filepath.Join(tempHome, ".local", "share", "replay", "buffer")
	if cfg.Paths.BufferDir != wantBuffer {
		t.Fatalf("unexpected buffer dir: got %q want %q", cfg.Paths.BufferDir, wantBuffer)
	}
	if cfg.Paths.ClipsDir != filepath.Join(tempHome, "Videos", "Replay") {
		t.Fatalf("unexpected clips dir: %q", cfg.Paths.ClipsDir)
	}
	if cfg.Capture.Display != ":7.0" {
		t.Fatalf("expected display from env, got %q", cfg.Capture.Display)
	}
	if cfg.Capture.Framerate != 60 {
		t.Fatalf("unexpected framerate: %d", cfg.Capture.Framerate)
	}
	if cfg.Buffer.ClipSeconds != 120 {
		t.Fatalf("unexpected clip seconds: %d", cfg.Buffer.ClipSeconds)
	}
	if cfg.Buffer.RetentionSeconds != 360 {
		t.Fatalf("unexpected retention seconds: %d", cfg.Buffer.RetentionSeconds)
	}
	if got := cfg.Hotkeys.Keys; len(got) != 2 || got[0] != "F4" || got[1] != "F5" {
		t.Fatalf("unexpected default keys: %v", got)
	}
	if !cfg.Output.Thumbnails {
		t.Fatal("expected thumbnails enabled by default")
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected ntfy topic empty by default, got %q", cfg.Notifications.NtfyTopic)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.BufferDir, cfg.Paths.ClipsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}

	if got := cfg.SocketPath(); filepath.Dir(got) != cfg.Paths.LogDir {
		t.Fatalf("expected socket under log dir, got %q", got)
	}
	if got := cfg.CatalogPath(); filepath.Base(got) != "catalog.db" {
		t.Fatalf("unexpected catalog path: %q", got)
	}
}

func TestLoadCustomPathAppliesOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "replay.toml")

	payload := `
[paths]
buffer_dir = "` + filepath.Join(tempDir, "buf") + `"
clips_dir = "` + filepath.Join(tempDir, "clips") + `"
log_dir = "` + filepath.Join(tempDir, "logs") + `"

[capture]
framerate = 30
segment_seconds = 5
display = ":9"

[buffer]
clip_seconds = 60
retention_seconds = 180

[hotkeys]
keys = [" f4 ", "f4", "f10"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Capture.Framerate != 30 {
		t.Fatalf("unexpected framerate: %d", cfg.Capture.Framerate)
	}
	if cfg.Capture.Display != ":9" {
		t.Fatalf("unexpected display: %q", cfg.Capture.Display)
	}
	if cfg.Buffer.ClipSeconds != 60 {
		t.Fatalf("unexpected clip seconds: %d", cfg.Buffer.ClipSeconds)
	}
	if got := cfg.Hotkeys.Keys; len(got) != 2 || got[0] != "F4" || got[1] != "F10" {
		t.Fatalf("expected trimmed, uppercased, deduplicated keys, got %v", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
	if cfg.SegmentDuration().Seconds() != 5 {
		t.Fatalf("unexpected segment duration: %v", cfg.SegmentDuration())
	}
	if cfg.ClipDuration().Seconds() != 60 {
		t.Fatalf("unexpected clip duration: %v", cfg.ClipDuration())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name: "shared buffer and clips dir",
			mutate: func(cfg *config.Config) {
				cfg.Paths.ClipsDir = cfg.Paths.BufferDir
			},
			wantErr: "must differ",
		},
		{
			name: "critical above low",
			mutate: func(cfg *config.Config) {
				cfg.Disk.CriticalGB = 6
				cfg.Disk.LowGB = 5
			},
			wantErr: "disk.critical_gb",
		},
		{
			name: "retention below clip length",
			mutate: func(cfg *config.Config) {
				cfg.Buffer.ClipSeconds = 120
				cfg.Buffer.RetentionSeconds = 120
			},
			wantErr: "buffer.retention_seconds",
		},
		{
			name: "segment longer than clip",
			mutate: func(cfg *config.Config) {
				cfg.Capture.SegmentSeconds = 300
				cfg.Buffer.ClipSeconds = 120
				cfg.Buffer.RetentionSeconds = 900
			},
			wantErr: "capture.segment_seconds",
		},
		{
			name: "width without height",
			mutate: func(cfg *config.Config) {
				cfg.Capture.Width = 1920
				cfg.Capture.Height = 0
			},
			wantErr: "auto-detection",
		},
		{
			name: "unsupported container",
			mutate: func(cfg *config.Config) {
				cfg.Output.Container = "avi"
			},
			wantErr: "output.container",
		},
		{
			name: "excessive framerate",
			mutate: func(cfg *config.Config) {
				cfg.Capture.Framerate = 500
			},
			wantErr: "capture.framerate",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateSampleParsesCleanly(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	samplePath := filepath.Join(tempHome, "config.toml")
	if err := config.CreateSample(samplePath); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(samplePath)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Buffer.ClipSeconds != 120 {
		t.Fatalf("sample clip seconds: %d", cfg.Buffer.ClipSeconds)
	}
	if cfg.Capture.Encoder != "libx264" {
		t.Fatalf("sample encoder: %q", cfg.Capture.Encoder)
	}
}
