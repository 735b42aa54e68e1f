// Package capture supervises the external ffmpeg process that writes the
// segment ring.
//
// The supervisor launches ffmpeg with the platform grabber and segment
// muxer arguments, restarts it with exponential backoff after unexpected
// exits, and declares capture unavailable once the consecutive-failure
// budget is spent. A restarted process resumes numbering one index past
// the ledger's high-water mark so the discontinuity is visible as a gap.
//
// The supervisor also owns the observer loop: the only goroutine that
// calls ledger.Observe and ledger.Prune.
//
// Pause, Resume, Restart, and Stop are safe from any goroutine. Pause and
// Stop terminate ffmpeg gracefully (SIGTERM, then kill after a grace
// period) and never count against the restart budget.
package capture
