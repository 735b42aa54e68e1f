// Package services defines the error taxonomy shared by the replay daemon's
// components and the request-scoped context plumbing that ties log lines and
// catalog rows back to a save request.
//
// Every recoverable failure mode has a sentinel marker so callers can branch
// on errors.Is and the catalog can persist a stable error class. Components
// wrap failures with Wrap to attach component and operation context without
// losing the marker or the underlying cause.
package services
