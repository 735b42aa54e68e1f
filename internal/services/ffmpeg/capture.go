package ffmpeg

import (
	"fmt"
	"runtime"
	"strconv"
)

// CaptureSpec describes one continuous screen-capture run: where to grab
// frames from, how to encode them, and where the segmenter writes files.
type CaptureSpec struct {
	Display        string
	Width          int
	Height         int
	OffsetX        int
	OffsetY        int
	Framerate      int
	DrawMouse      bool
	Encoder        string
	Preset         string
	PixelFormat    string
	SegmentSeconds int
	StartNumber    int
	OutputPattern  string
}

// CaptureArgs builds the ffmpeg argument list for the current platform.
func CaptureArgs(spec CaptureSpec) []string {
	return captureArgsFor(runtime.GOOS, spec)
}

func captureArgsFor(goos string, spec CaptureSpec) []string {
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "warning"}
	args = append(args, grabberArgs(goos, spec)...)
	args = append(args, encoderArgs(spec)...)
	args = append(args, segmenterArgs(spec)...)
	return args
}

// grabberArgs selects the capture input device. Each platform has its own
// grabber with incompatible option names.
func grabberArgs(goos string, spec CaptureSpec) []string {
	switch goos {
	case "windows":
		args := []string{
			"-f", "gdigrab",
			"-framerate", strconv.Itoa(spec.Framerate),
		}
		if spec.Width > 0 && spec.Height > 0 {
			args = append(args,
				"-offset_x", strconv.Itoa(spec.OffsetX),
				"-offset_y", strconv.Itoa(spec.OffsetY),
				"-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
			)
		}
		args = append(args, "-draw_mouse", bool01(spec.DrawMouse), "-i", "desktop")
		return args
	case "darwin":
		return []string{
			"-f", "avfoundation",
			"-framerate", strconv.Itoa(spec.Framerate),
			"-capture_cursor", bool01(spec.DrawMouse),
			"-i", "1:none",
		}
	default:
		args := []string{
			"-f", "x11grab",
			"-framerate", strconv.Itoa(spec.Framerate),
		}
		if spec.Width > 0 && spec.Height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height))
		}
		if !spec.DrawMouse {
			args = append(args, "-draw_mouse", "0")
		}
		display := spec.Display
		if display == "" {
			display = ":0.0"
		}
		input := fmt.Sprintf("%s+%d,%d", display, spec.OffsetX, spec.OffsetY)
		args = append(args, "-i", input)
		return args
	}
}

func bool01(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// encoderArgs pins the keyframe cadence so every segment starts on a
// keyframe. Segments that begin mid-GOP cannot be concatenated losslessly.
func encoderArgs(spec CaptureSpec) []string {
	encoder := spec.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	preset := spec.Preset
	if preset == "" {
		preset = "veryfast"
	}
	pixfmt := spec.PixelFormat
	if pixfmt == "" {
		pixfmt = "yuv420p"
	}
	gop := GOPSize(spec.Framerate)
	return []string{
		"-c:v", encoder,
		"-preset", preset,
		"-tune", "zerolatency",
		"-pix_fmt", pixfmt,
		"-g", strconv.Itoa(gop),
		"-keyint_min", strconv.Itoa(gop),
		"-sc_threshold", "0",
	}
}

func segmenterArgs(spec CaptureSpec) []string {
	args := []string{
		"-f", "segment",
		"-segment_time", strconv.Itoa(spec.SegmentSeconds),
		"-reset_timestamps", "1",
		"-segment_format", "mpegts",
	}
	if spec.StartNumber > 0 {
		args = append(args, "-segment_start_number", strconv.Itoa(spec.StartNumber))
	}
	args = append(args, spec.OutputPattern)
	return args
}

// GOPSize returns the keyframe interval for a framerate: two seconds
// of frames, never below 30.
func GOPSize(framerate int) int {
	gop := 2 * framerate
	if gop < 30 {
		gop = 30
	}
	return gop
}
