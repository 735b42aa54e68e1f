// Package daemon coordinates the long-running replay process.
//
// It wires the capture supervisor, segment ledger, disk guard, clip
// assembler, hotkey listener, and clip catalog into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon forwards
// hotkey triggers to the assembler with a window-title snapshot taken at
// press time, runs the periodic status reporter, and answers the control
// methods the IPC server exposes.
//
// Keep orchestration logic here: the subsystems own their own loops while
// the daemon focuses on startup, shutdown, and high level coordination.
package daemon
