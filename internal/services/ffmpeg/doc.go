// Package ffmpeg wraps the ffmpeg CLI invocations the daemon depends on:
// the long-running segment capture command and the two concat paths used to
// assemble clips (lossless stream copy, then a conservative re-encode when
// the copy path produces an unusable file).
//
// The package builds argument vectors and runs short-lived jobs through an
// injectable Executor so tests never spawn real processes. Capture process
// lifecycle (start, monitor, restart) belongs to internal/capture; this
// package only knows how to phrase the commands.
package ffmpeg
