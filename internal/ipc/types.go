package ipc

import (
	"replay/internal/assembler"
	"replay/internal/capture"
	"replay/internal/catalog"
	"replay/internal/diskguard"
	"replay/internal/ledger"
)

// StatusRequest asks for the daemon runtime snapshot.
type StatusRequest struct{}

// StatusResponse mirrors daemon.Status for IPC clients.
type StatusResponse struct {
	Running   bool   `json:"running"`
	PID       int    `json:"pid"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at,omitempty"`

	LockPath    string `json:"lock_path"`
	CatalogPath string `json:"catalog_path"`
	LogPath     string `json:"log_path"`

	Capture  capture.State    `json:"capture"`
	Buffer   ledger.Stats     `json:"buffer"`
	Disk     diskguard.Report `json:"disk"`
	Save     assembler.State  `json:"save"`
	LastSave *catalog.Clip    `json:"last_save,omitempty"`

	HotkeyDevices []string `json:"hotkey_devices,omitempty"`
	Notifications bool     `json:"notifications_configured"`
}

// SaveRequest queues a clip save. Seconds <= 0 uses the configured clip
// length; an empty title is filled from the active window.
type SaveRequest struct {
	Seconds int    `json:"seconds"`
	Title   string `json:"title"`
}

// SaveResponse acknowledges the queued save request.
type SaveResponse struct {
	RequestID string `json:"request_id"`
	ClipID    int64  `json:"clip_id"`
	Seconds   int    `json:"seconds"`
	Title     string `json:"title,omitempty"`
}

// PauseCaptureRequest suspends segment recording.
type PauseCaptureRequest struct{}

// PauseCaptureResponse reports the resulting capture phase.
type PauseCaptureResponse struct {
	Phase string `json:"phase"`
}

// ResumeCaptureRequest resumes recording after a pause.
type ResumeCaptureRequest struct{}

// ResumeCaptureResponse reports the resulting capture phase.
type ResumeCaptureResponse struct {
	Phase string `json:"phase"`
}

// RestartCaptureRequest forces a capture process restart.
type RestartCaptureRequest struct{}

// RestartCaptureResponse reports the resulting capture phase.
type RestartCaptureResponse struct {
	Phase string `json:"phase"`
}

// ClipsRequest lists recent catalog entries, newest first.
type ClipsRequest struct {
	Limit int `json:"limit"`
}

// ClipsResponse contains catalog rows.
type ClipsResponse struct {
	Clips []catalog.Clip `json:"clips"`
}

// LogTailRequest fetches daemon log lines. A negative Cursor requests the
// last Lines lines; subsequent calls pass the returned cursor to resume.
type LogTailRequest struct {
	Cursor     int64 `json:"cursor"`
	Lines      int   `json:"lines"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the cursor for the next call.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Cursor int64    `json:"cursor"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
