// Package diskguard polls free space on the buffer filesystem and keeps
// the recorder from filling the disk.
//
// Three states: ok, low, critical. Entering critical pauses capture,
// prunes the ring down to its minimum reserve, and notifies; capture
// resumes only after free space climbs back above the low threshold, so
// the guard never flaps around the critical line. The guard itself
// deletes nothing; all pruning goes through the segment ledger, which
// honors pins.
package diskguard
