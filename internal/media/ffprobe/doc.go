// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no replay-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns a parsed Result
//   - ValidateClip: confirms an assembled clip is a playable video
package ffprobe
