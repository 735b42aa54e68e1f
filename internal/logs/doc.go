// Package logs provides bounded tail access to the daemon's log file.
//
// It backs `replay logs` and the TailLog IPC method: negative cursors read
// the last N lines, non-negative cursors resume where a previous call
// stopped, and a positive wait turns one call into a bounded long poll for
// follow mode. Lines return verbatim so the CLI can render either log
// format unchanged.
package logs
