package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"replay/internal/logging"
	"replay/internal/services"
)

// Snapshot is the result of one Observe pass over the buffer directory.
type Snapshot struct {
	Segments []Segment
	Gaps     int
}

// Stats summarizes the ring buffer for status reporting.
type Stats struct {
	Segments    int           `json:"segments"`
	Complete    int           `json:"complete"`
	Buffered    time.Duration `json:"buffered"`
	OldestIndex int           `json:"oldest_index"`
	NewestIndex int           `json:"newest_index"`
	TotalBytes  int64         `json:"total_bytes"`
	Gaps        int           `json:"gaps"`
	Pinned      int           `json:"pinned"`
}

// Ledger tracks the segment files one capture run writes into a single
// buffer directory.
type Ledger struct {
	dir     string
	segDur  time.Duration
	minKeep int
	logger  *slog.Logger

	mu        sync.Mutex
	segments  []Segment
	pins      map[int]int
	knownGaps map[int]struct{}
	maxSeen   int
}

// New builds a ledger over dir. segmentDuration is the nominal length of
// every segment; maxClipLength bounds how much trailing footage Prune must
// always preserve.
func New(dir string, segmentDuration, maxClipLength time.Duration, logger *slog.Logger) (*Ledger, error) {
	if dir == "" {
		return nil, errors.New("ledger: buffer directory required")
	}
	if segmentDuration <= 0 {
		return nil, errors.New("ledger: segment duration must be positive")
	}
	if maxClipLength < segmentDuration {
		maxClipLength = segmentDuration
	}
	minKeep := int((maxClipLength+segmentDuration-1)/segmentDuration) + 1
	return &Ledger{
		dir:       dir,
		segDur:    segmentDuration,
		minKeep:   minKeep,
		logger:    logging.NewComponentLogger(logger, "ledger"),
		pins:      make(map[int]int),
		knownGaps: make(map[int]struct{}),
		maxSeen:   -1,
	}, nil
}

// Observe rescans the buffer directory and replaces the ledger's view of
// the ring. The highest index is marked incomplete because ffmpeg may
// still be writing it. New sequence gaps are logged once each.
func (l *Ledger) Observe() (Snapshot, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger observe: %w", err)
	}
	segments := make([]Segment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := ParseIndex(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			l.logger.Debug("skipping unreadable segment entry",
				logging.String("segment", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		segments = append(segments, Segment{
			Index:    index,
			Path:     filepath.Join(l.dir, entry.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Duration: l.segDur,
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	for i := range segments {
		segments[i].Complete = i < len(segments)-1
	}

	gaps := make(map[int]struct{})
	for i := 1; i < len(segments); i++ {
		if segments[i].Index != segments[i-1].Index+1 {
			gaps[segments[i-1].Index] = struct{}{}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range gaps {
		if _, seen := l.knownGaps[key]; !seen {
			logging.WarnWithContext(l.logger, "segment sequence gap detected", "ledger_inconsistency",
				logging.Int("gap_after_index", key),
				logging.String(logging.FieldErrorHint, "capture restarted or segments were removed externally"),
				logging.String(logging.FieldImpact, "clips cannot span this discontinuity"),
			)
		}
	}
	l.knownGaps = gaps
	l.segments = segments
	if n := len(segments); n > 0 && segments[n-1].Index > l.maxSeen {
		l.maxSeen = segments[n-1].Index
	}
	return Snapshot{
		Segments: append([]Segment(nil), segments...),
		Gaps:     len(gaps),
	}, nil
}

// Window selects the trailing run of complete segments covering at least
// clipLength of nominal duration, oldest first. Selection walks backward
// from the newest complete segment and stops at the first sequence gap,
// so a window is best-effort when the buffer holds less than requested.
func (l *Ledger) Window(clipLength time.Duration) (Window, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windowLocked(clipLength)
}

func (l *Ledger) windowLocked(clipLength time.Duration) (Window, error) {
	if clipLength <= 0 {
		return Window{}, services.Wrap(services.ErrConfiguration, "ledger", "window", "clip length must be positive", nil)
	}
	var complete []Segment
	if n := len(l.segments); n > 1 {
		complete = l.segments[:n-1]
	}
	if len(complete) == 0 {
		return Window{}, services.Wrap(services.ErrNoSegments, "ledger", "window", "no complete segments buffered", nil)
	}

	start := len(complete) - 1
	total := complete[start].Duration
	for start > 0 && total < clipLength {
		if complete[start-1].Index != complete[start].Index-1 {
			break
		}
		start--
		total += complete[start].Duration
	}
	return Window{
		Segments: append([]Segment(nil), complete[start:]...),
		Duration: total,
	}, nil
}

// Pin leases the window's segments so Prune skips them. Pins on the same
// segment stack; each Release drops one lease.
func (l *Ledger) Pin(w Window) *Pin {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pinLocked(w)
}

// PinWindow selects and pins a window in one step so a concurrent prune
// cannot remove segments between selection and pinning.
func (l *Ledger) PinWindow(clipLength time.Duration) (Window, *Pin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, err := l.windowLocked(clipLength)
	if err != nil {
		return Window{}, nil, err
	}
	return w, l.pinLocked(w), nil
}

func (l *Ledger) pinLocked(w Window) *Pin {
	indices := w.Indices()
	for _, index := range indices {
		l.pins[index]++
	}
	return &Pin{ledger: l, indices: indices}
}

// Pin holds segments on disk until released. Release is idempotent.
type Pin struct {
	ledger  *Ledger
	indices []int
	once    sync.Once
}

// Release drops the lease on the pinned segments.
func (p *Pin) Release() {
	if p == nil || p.ledger == nil {
		return
	}
	p.once.Do(func() {
		p.ledger.mu.Lock()
		defer p.ledger.mu.Unlock()
		for _, index := range p.indices {
			if p.ledger.pins[index] <= 1 {
				delete(p.ledger.pins, index)
			} else {
				p.ledger.pins[index]--
			}
		}
	})
}

// Prune deletes complete, unpinned segments whose modification time lies
// beyond the retention horizon. A trailing reserve large enough to cover
// the maximum clip length plus one segment is always kept so a save
// triggered immediately after a prune still finds its window.
func (l *Ledger) Prune(retention time.Duration) int {
	if retention < 0 {
		retention = 0
	}
	return l.prune(time.Now().Add(-retention))
}

// PruneAggressive ignores retention and trims the ring down to the
// trailing reserve. The disk guard invokes it while space is critical.
func (l *Ledger) PruneAggressive() int {
	return l.prune(time.Now())
}

func (l *Ledger) prune(horizon time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := len(l.segments) - 1 - l.minKeep
	if cut <= 0 {
		return 0
	}
	removed := 0
	remaining := make([]Segment, 0, len(l.segments))
	for i, seg := range l.segments {
		if i >= cut || l.pins[seg.Index] > 0 || !seg.ModTime.Before(horizon) {
			remaining = append(remaining, seg)
			continue
		}
		if err := os.Remove(seg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(l.logger, "failed to remove expired segment", "segment_prune_failed",
				logging.String("segment", seg.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check buffer directory permissions"),
				logging.String(logging.FieldImpact, "buffer keeps consuming disk space"),
			)
			remaining = append(remaining, seg)
			continue
		}
		l.logger.Debug("pruned segment",
			logging.Int("index", seg.Index),
			logging.String("segment", seg.Path),
		)
		removed++
	}
	l.segments = remaining
	return removed
}

// NextStartNumber returns the segment index a restarted capture process
// must begin at. The +2 leaves a deliberate one-index hole so the gap
// detector marks the restart and no window spans it. A ledger that never
// observed a segment returns 0, letting ffmpeg use its default numbering.
func (l *Ledger) NextStartNumber() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxSeen < 0 {
		return 0
	}
	return l.maxSeen + 2
}

// Stats reports the current ring shape. Oldest/newest are -1 when the
// ring is empty.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := Stats{
		OldestIndex: -1,
		NewestIndex: -1,
		Gaps:        len(l.knownGaps),
		Pinned:      len(l.pins),
	}
	for _, seg := range l.segments {
		stats.Segments++
		stats.TotalBytes += seg.Size
		if seg.Complete {
			stats.Complete++
			stats.Buffered += seg.Duration
		}
	}
	if len(l.segments) > 0 {
		stats.OldestIndex = l.segments[0].Index
		stats.NewestIndex = l.segments[len(l.segments)-1].Index
	}
	return stats
}

// ClearStale removes every segment file in the buffer directory. The
// supervisor calls it once before the first capture launch: leftovers
// from a previous run have unknown validity and their indices would
// collide with fresh numbering.
func (l *Ledger) ClearStale() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger clear: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := ParseIndex(entry.Name()); !ok {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(l.logger, "failed to remove stale segment", "segment_prune_failed",
				logging.String("segment", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check buffer directory permissions"),
				logging.String(logging.FieldImpact, "stale segment may corrupt the new ring"),
			)
			continue
		}
		removed++
	}
	return removed, nil
}
