package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCaptureUnavailable marks capture process failures that exhausted the
	// restart budget. Recording halts until a manual restart.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrNoSegments marks a save request that arrived before any complete
	// segment existed.
	ErrNoSegments = errors.New("no segments available")
	// ErrAssemblyFailed marks a save whose fast and fallback encode attempts
	// both failed.
	ErrAssemblyFailed = errors.New("assembly failed")
	// ErrDiskCritical marks free space below the critical threshold or the
	// save floor.
	ErrDiskCritical = errors.New("disk critically low")
	// ErrLedgerInconsistency marks sequence gaps and unreadable segment files.
	ErrLedgerInconsistency = errors.New("segment ledger inconsistency")
	// ErrExternalTool marks ffmpeg/ffprobe invocation failures.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks unusable configuration detected at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing catalog rows and similar lookups.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks operations that exceeded their grace period.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the stable class string persisted in the clip
// catalog and surfaced over IPC.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCaptureUnavailable):
		return "capture_unavailable"
	case errors.Is(err, ErrNoSegments):
		return "no_segments"
	case errors.Is(err, ErrAssemblyFailed):
		return "assembly_failed"
	case errors.Is(err, ErrDiskCritical):
		return "disk_critical"
	case errors.Is(err, ErrLedgerInconsistency):
		return "ledger_inconsistency"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
