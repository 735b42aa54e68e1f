// Package catalog persists clip save requests in SQLite.
//
// Every save request gets a row at trigger time and moves through
// pending, assembling, and finally completed or failed. The catalog is
// the durable record of what was saved and why a save did not produce a
// clip; the ring segments themselves are transient and never recorded
// here. Timestamps are stored as RFC3339Nano UTC strings.
package catalog
