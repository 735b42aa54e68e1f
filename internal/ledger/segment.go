package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// FilePrefix and FileExt frame every segment file name. Segments are
	// always MPEG-TS regardless of the clip output container: TS streams
	// survive truncation, so a crash mid-segment loses one segment, not
	// the whole ring.
	FilePrefix = "buf-"
	FileExt    = ".ts"

	indexDigits = 5
)

// FilePattern returns the printf-style name pattern handed to ffmpeg's
// segment muxer, e.g. "buf-%05d.ts".
func FilePattern() string {
	return fmt.Sprintf("%s%%0%dd%s", FilePrefix, indexDigits, FileExt)
}

// FileName returns the segment file name for a sequence index.
func FileName(index int) string {
	return fmt.Sprintf("%s%0*d%s", FilePrefix, indexDigits, index, FileExt)
}

// ParseIndex extracts the sequence index from a segment file name.
// Names that do not match the buf-NNNNN.ts shape report ok=false.
func ParseIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) {
		return 0, false
	}
	digits := name[len(FilePrefix) : len(name)-len(FileExt)]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return index, true
}

// Segment is one fixed-duration chunk of captured video in the ring.
type Segment struct {
	Index    int
	Path     string
	Size     int64
	ModTime  time.Time
	Duration time.Duration
	Complete bool
}

// Window is an ordered (oldest first) gap-free run of complete segments
// whose summed nominal duration covers one save request. Windows are
// computed fresh per request and never cached.
type Window struct {
	Segments []Segment
	Duration time.Duration
}

// Paths returns the window's segment paths, oldest first.
func (w Window) Paths() []string {
	paths := make([]string, 0, len(w.Segments))
	for _, seg := range w.Segments {
		paths = append(paths, seg.Path)
	}
	return paths
}

// Indices returns the window's sequence indices, oldest first.
func (w Window) Indices() []int {
	indices := make([]int, 0, len(w.Segments))
	for _, seg := range w.Segments {
		indices = append(indices, seg.Index)
	}
	return indices
}

// DurationSeconds returns the window's nominal duration in whole seconds,
// rounded. Output filenames carry this value.
func (w Window) DurationSeconds() int {
	return int(w.Duration.Round(time.Second) / time.Second)
}
