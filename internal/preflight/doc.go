// Package preflight provides readiness checks for the directories,
// binaries, and disk headroom the daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll before wiring subsystems; a fatal
//     failure aborts startup instead of looping on a doomed capture.
//   - The CLI "replay status" command reuses individual check functions
//     to explain why an offline daemon will not start.
package preflight
