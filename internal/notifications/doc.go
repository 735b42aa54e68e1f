// Package notifications pushes daemon events to ntfy.
//
// The service is optional: without a configured topic every method is a
// no-op, so callers never guard their notification calls. Failures are
// reported to the caller but are always treated as best-effort there; a
// missed push never fails a save.
package notifications
