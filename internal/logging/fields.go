package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized structured logging key for save request identifiers.
	FieldRequestID = "request_id"
	// FieldEventType categorizes operator-facing events (save_failed, disk_critical, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step when a warning or error is logged.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
