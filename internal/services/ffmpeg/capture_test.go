package ffmpeg

import (
	"strings"
	"testing"
)

func TestGOPSize(t *testing.T) {
	tests := []struct {
		name      string
		framerate int
		want      int
	}{
		{"sixty fps", 60, 120},
		{"thirty fps", 30, 60},
		{"ten fps floors at thirty", 10, 30},
		{"zero fps floors at thirty", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GOPSize(tt.framerate); got != tt.want {
				t.Errorf("GOPSize(%d) = %d, want %d", tt.framerate, got, tt.want)
			}
		})
	}
}

func TestCaptureArgsLinux(t *testing.T) {
	spec := CaptureSpec{
		Display:        ":1.0",
		Width:          1920,
		Height:         1080,
		OffsetX:        100,
		OffsetY:        50,
		Framerate:      60,
		DrawMouse:      true,
		Encoder:        "libx264",
		Preset:         "veryfast",
		PixelFormat:    "yuv420p",
		SegmentSeconds: 10,
		OutputPattern:  "/tmp/buffer/buf-%05d.ts",
	}
	args := captureArgsFor("linux", spec)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f x11grab",
		"-framerate 60",
		"-video_size 1920x1080",
		"-i :1.0+100,50",
		"-c:v libx264",
		"-preset veryfast",
		"-tune zerolatency",
		"-pix_fmt yuv420p",
		"-g 120",
		"-keyint_min 120",
		"-sc_threshold 0",
		"-f segment",
		"-segment_time 10",
		"-reset_timestamps 1",
		"-segment_format mpegts",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-segment_start_number") {
		t.Errorf("expected no start number for fresh run, got: %s", joined)
	}
	if args[len(args)-1] != spec.OutputPattern {
		t.Errorf("expected output pattern last, got %q", args[len(args)-1])
	}
}

func TestCaptureArgsLinuxFullScreenOmitsVideoSize(t *testing.T) {
	spec := CaptureSpec{
		Display:        ":0.0",
		Framerate:      30,
		DrawMouse:      true,
		SegmentSeconds: 10,
		OutputPattern:  "/tmp/buf-%05d.ts",
	}
	joined := strings.Join(captureArgsFor("linux", spec), " ")
	if strings.Contains(joined, "-video_size") {
		t.Errorf("expected full-screen capture without -video_size, got: %s", joined)
	}
	if !strings.Contains(joined, "-i :0.0+0,0") {
		t.Errorf("expected display input with zero offsets, got: %s", joined)
	}
	if strings.Contains(joined, "-draw_mouse") {
		t.Errorf("x11grab draws the cursor by default, got: %s", joined)
	}
}

func TestCaptureArgsLinuxHidesCursorWhenDisabled(t *testing.T) {
	spec := CaptureSpec{
		Display:        ":0.0",
		Framerate:      30,
		SegmentSeconds: 10,
		OutputPattern:  "/tmp/buf-%05d.ts",
	}
	joined := strings.Join(captureArgsFor("linux", spec), " ")
	if !strings.Contains(joined, "-draw_mouse 0") {
		t.Errorf("expected -draw_mouse 0 when cursor capture is off, got: %s", joined)
	}
}

func TestCaptureArgsWindows(t *testing.T) {
	spec := CaptureSpec{
		Width:          1280,
		Height:         720,
		OffsetX:        10,
		OffsetY:        20,
		Framerate:      30,
		DrawMouse:      true,
		SegmentSeconds: 10,
		OutputPattern:  `C:\buf\buf-%05d.ts`,
	}
	joined := strings.Join(captureArgsFor("windows", spec), " ")
	for _, want := range []string{
		"-f gdigrab",
		"-offset_x 10",
		"-offset_y 20",
		"-video_size 1280x720",
		"-draw_mouse 1",
		"-i desktop",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got: %s", want, joined)
		}
	}
}

func TestCaptureArgsDarwin(t *testing.T) {
	spec := CaptureSpec{
		Framerate:      30,
		DrawMouse:      true,
		SegmentSeconds: 10,
		OutputPattern:  "/tmp/buf-%05d.ts",
	}
	joined := strings.Join(captureArgsFor("darwin", spec), " ")
	for _, want := range []string{
		"-f avfoundation",
		"-capture_cursor 1",
		"-i 1:none",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got: %s", want, joined)
		}
	}
}

func TestCaptureArgsRestartStartNumber(t *testing.T) {
	spec := CaptureSpec{
		Display:        ":0.0",
		Framerate:      30,
		SegmentSeconds: 10,
		StartNumber:    42,
		OutputPattern:  "/tmp/buf-%05d.ts",
	}
	joined := strings.Join(captureArgsFor("linux", spec), " ")
	if !strings.Contains(joined, "-segment_start_number 42") {
		t.Errorf("expected restart start number, got: %s", joined)
	}
}

func TestCaptureArgsDefaultsEncoder(t *testing.T) {
	spec := CaptureSpec{
		Framerate:      30,
		SegmentSeconds: 10,
		OutputPattern:  "/tmp/buf-%05d.ts",
	}
	joined := strings.Join(captureArgsFor("linux", spec), " ")
	for _, want := range []string{
		"-c:v libx264",
		"-preset veryfast",
		"-pix_fmt yuv420p",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected encoder defaults %q, got: %s", want, joined)
		}
	}
}
