package catalog

import "time"

// Status represents the lifecycle of a clip save request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssembling Status = "assembling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// EncodePath records which assembly strategy produced the clip.
type EncodePath string

const (
	// EncodeCopy is the lossless concat demuxer stream-copy path.
	EncodeCopy EncodePath = "copy"
	// EncodeReencode is the re-encode fallback taken when stream copy
	// produced an invalid clip.
	EncodeReencode EncodePath = "reencode"
)

// InterruptedReason is the error message set on in-flight requests when
// the daemon shuts down before they finish.
const InterruptedReason = "interrupted by daemon shutdown"

var allStatuses = []Status{
	StatusPending,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// KnownStatus reports whether s is a recognized lifecycle state.
func KnownStatus(s Status) bool {
	_, ok := statusSet[s]
	return ok
}

// Clip represents a clip save request persisted in SQLite.
type Clip struct {
	ID               int64      `json:"id"`
	RequestID        string     `json:"request_id"`
	Title            string     `json:"title,omitempty"`
	Status           Status     `json:"status"`
	Source           string     `json:"source"`
	RequestedSeconds int        `json:"requested_seconds"`
	ActualSeconds    float64    `json:"actual_seconds,omitempty"`
	SegmentCount     int        `json:"segment_count,omitempty"`
	SizeBytes        int64      `json:"size_bytes,omitempty"`
	EncodePath       EncodePath `json:"encode_path,omitempty"`
	OutputPath       string     `json:"output_path,omitempty"`
	ThumbnailPath    string     `json:"thumbnail_path,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Completion carries the results of a finished assembly.
type Completion struct {
	OutputPath    string
	ThumbnailPath string
	SizeBytes     int64
	ActualSeconds float64
	SegmentCount  int
	EncodePath    EncodePath
}

// HealthSummary describes aggregated catalog counts per lifecycle state.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Assembling int `json:"assembling"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
