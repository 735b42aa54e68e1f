package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"replay/internal/capture"
	"replay/internal/diskguard"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Replay", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Replay:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Replay", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCaptureLine(t *testing.T) {
	running := captureLine(capture.State{Phase: capture.PhaseRunning, Pid: 77}, false)
	if !strings.Contains(running, "[OK] running (pid 77)") {
		t.Fatalf("unexpected running line %q", running)
	}
	paused := captureLine(capture.State{Phase: capture.PhasePaused}, false)
	if !strings.Contains(paused, "[WARN] paused") {
		t.Fatalf("unexpected paused line %q", paused)
	}
	down := captureLine(capture.State{Phase: capture.PhaseUnavailable, LastExitError: "exit status 1"}, false)
	if !strings.Contains(down, "[ERROR] unavailable: exit status 1") {
		t.Fatalf("unexpected unavailable line %q", down)
	}
}

func TestDiskLine(t *testing.T) {
	ok := diskLine(diskguard.Report{Status: diskguard.StatusOk, FreeBytes: 50 << 30}, false)
	if !strings.Contains(ok, "[OK] 50.0 GiB free") {
		t.Fatalf("unexpected ok line %q", ok)
	}
	critical := diskLine(diskguard.Report{Status: diskguard.StatusCritical, FreeBytes: 1 << 30}, false)
	if !strings.Contains(critical, "[ERROR]") || !strings.Contains(critical, "capture paused") {
		t.Fatalf("unexpected critical line %q", critical)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:           "512 B",
		2048:          "2.0 KiB",
		5 * 1 << 20:   "5.0 MiB",
		3 * (1 << 30): "3.0 GiB",
	}
	for input, want := range cases {
		if got := formatBytes(input); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", input, got, want)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
