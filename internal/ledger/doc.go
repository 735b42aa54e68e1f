// Package ledger tracks the segment ring buffer written by the capture
// process.
//
// The ledger never launches or owns ffmpeg; it watches the buffer
// directory, orders segments by sequence index, detects discontinuities,
// selects trailing windows for clip assembly, and prunes segments past
// retention. Pins protect a window's segments from pruning while an
// assembly reads them.
//
// Key types:
//   - Ledger: the bookkeeping core; one instance per buffer directory
//   - Segment: a single fixed-duration chunk parsed from buf-NNNNN.ts
//   - Window: an ordered, gap-free run of complete segments for one clip
//   - Pin: a refcount lease that keeps a window's segments on disk
//
// Only the capture supervisor's watch loop calls Observe and Prune;
// every other caller reads snapshots or pins windows.
package ledger
