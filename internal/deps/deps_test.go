package deps

import (
	"os"
	"path/filepath"
	"testing"

	"replay/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	cfg.Capture.FFprobeBinary = "/opt/ffmpeg/bin/ffprobe"

	reqs := Requirements(&cfg)
	byName := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		byName[req.Name] = req
	}

	if got := byName["FFmpeg"].Command; got != cfg.Capture.FFmpegBinary {
		t.Fatalf("ffmpeg command = %q, want %q", got, cfg.Capture.FFmpegBinary)
	}
	if got := byName["FFprobe"].Command; got != cfg.Capture.FFprobeBinary {
		t.Fatalf("ffprobe command = %q, want %q", got, cfg.Capture.FFprobeBinary)
	}
	if byName["FFmpeg"].Optional || byName["FFprobe"].Optional {
		t.Fatal("ffmpeg and ffprobe must be required")
	}
	if !byName["xprop"].Optional || !byName["xrandr"].Optional {
		t.Fatal("X11 helpers must be optional")
	}
}

func TestRequirementsDefaultsWithoutConfig(t *testing.T) {
	reqs := Requirements(nil)
	if len(reqs) == 0 {
		t.Fatal("expected requirements without config")
	}
	for _, req := range reqs {
		if req.Command == "" {
			t.Fatalf("requirement %s missing command", req.Name)
		}
	}
}
