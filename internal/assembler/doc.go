// Package assembler turns save requests into finished clip files. A single
// worker drains a one-deep pending slot: it pins the trailing segment
// window, concatenates it with ffmpeg (lossless copy first, at most one
// re-encode fallback), validates the result with ffprobe, and renames the
// clip into the clips directory only after validation. Every request ends
// as a completed or failed catalog row.
package assembler
