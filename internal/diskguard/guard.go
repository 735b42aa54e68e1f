package diskguard

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sys/unix"

	"replay/internal/config"
	"replay/internal/logging"
)

// Status classifies free space on the buffer filesystem.
type Status int

const (
	StatusOk Status = iota
	StatusLow
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusLow:
		return "low"
	case StatusCritical:
		return "critical"
	default:
		return "ok"
	}
}

// Report is the outcome of one free-space evaluation.
type Report struct {
	Status     Status    `json:"status"`
	FreeBytes  uint64    `json:"free_bytes"`
	TotalBytes uint64    `json:"total_bytes"`
	CheckedAt  time.Time `json:"checked_at"`
}

// FreeGB returns free space in gibibytes for display.
func (r Report) FreeGB() float64 {
	return float64(r.FreeBytes) / float64(1<<30)
}

// Hooks are the guard's transition actions. Nil hooks are skipped.
type Hooks struct {
	PauseCapture    func(ctx context.Context) error
	ResumeCapture   func(ctx context.Context) error
	PruneAggressive func() int
	Notify          func(ctx context.Context, status Status, freeBytes uint64)
}

type statfsFunc func(path string) (total uint64, free uint64, err error)

// Option configures the guard.
type Option func(*Guard)

// WithStatfs substitutes the filesystem probe (tests).
func WithStatfs(fn statfsFunc) Option {
	return func(g *Guard) {
		if fn != nil {
			g.statfs = fn
		}
	}
}

// Guard watches free space where the segment ring lives.
type Guard struct {
	dir      string
	low      uint64
	critical uint64
	interval time.Duration
	logger   *slog.Logger
	hooks    Hooks
	statfs   statfsFunc

	mu      sync.Mutex
	report  Report
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a guard from the disk section of the configuration.
func New(cfg *config.Config, logger *slog.Logger, hooks Hooks, opts ...Option) (*Guard, error) {
	if cfg == nil {
		return nil, errors.New("diskguard: config required")
	}
	dir := cfg.Paths.BufferDir
	if dir == "" {
		return nil, errors.New("diskguard: buffer directory required")
	}
	interval := cfg.DiskPollInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	guard := &Guard{
		dir:      dir,
		low:      gbToBytes(cfg.Disk.LowGB),
		critical: gbToBytes(cfg.Disk.CriticalGB),
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "diskguard"),
		hooks:    hooks,
		statfs:   realStatfs,
		report:   Report{Status: StatusOk},
	}
	for _, opt := range opts {
		opt(guard)
	}
	return guard, nil
}

// Start launches the poll loop. The first evaluation runs immediately so
// a daemon booted onto a full disk pauses capture before writing anything.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return errors.New("diskguard already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true

	g.wg.Add(1)
	go g.loop(runCtx)
	return nil
}

// Stop halts the poll loop and waits for it to exit.
func (g *Guard) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.running = false
	g.cancel = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}

func (g *Guard) loop(ctx context.Context) {
	defer g.wg.Done()

	g.poll(ctx)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.poll(ctx)
		}
	}
}

func (g *Guard) poll(ctx context.Context) {
	if _, err := g.Check(ctx); err != nil {
		logging.WarnWithContext(g.logger, "free-space check failed", "disk_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the buffer directory is mounted and readable"),
			logging.String(logging.FieldImpact, "disk thresholds are not being enforced"),
		)
	}
}

// Check evaluates free space once and applies any state transition. The
// previous status is kept when the probe fails.
func (g *Guard) Check(ctx context.Context) (Report, error) {
	total, free, err := g.statfs(g.dir)
	if err != nil {
		return g.Report(), err
	}

	g.mu.Lock()
	prev := g.report.Status
	next := g.classify(prev, free)
	report := Report{
		Status:     next,
		FreeBytes:  free,
		TotalBytes: total,
		CheckedAt:  time.Now(),
	}
	g.report = report
	g.mu.Unlock()

	g.transition(ctx, prev, next, free)
	return report, nil
}

// Report returns the most recent evaluation.
func (g *Guard) Report() Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report
}

// classify applies the thresholds with hysteresis: once critical, the
// guard stays critical until free space climbs above the low threshold.
func (g *Guard) classify(prev Status, free uint64) Status {
	switch {
	case free < g.critical:
		return StatusCritical
	case prev == StatusCritical && free <= g.low:
		return StatusCritical
	case free < g.low:
		return StatusLow
	default:
		return StatusOk
	}
}

func (g *Guard) transition(ctx context.Context, prev, next Status, free uint64) {
	if next == StatusCritical {
		if prev != StatusCritical {
			g.logger.Error("disk space critical, pausing capture",
				logging.Uint64("free_bytes", free),
				logging.String(logging.FieldEventType, "disk_critical"),
				logging.String(logging.FieldErrorHint, "free space on the buffer filesystem or lower buffer.retention_seconds"),
				logging.String(logging.FieldImpact, "capture paused until space recovers"),
			)
			if g.hooks.PauseCapture != nil {
				if err := g.hooks.PauseCapture(ctx); err != nil {
					g.logger.Warn("pause capture failed", logging.Error(err))
				}
			}
			g.notify(ctx, next, free)
		}
		if g.hooks.PruneAggressive != nil {
			if removed := g.hooks.PruneAggressive(); removed > 0 {
				g.logger.Info("aggressive prune reclaimed segments",
					logging.Int("segments_removed", removed),
				)
			}
		}
		return
	}

	if prev == StatusCritical {
		g.logger.Info("disk space recovered, resuming capture",
			logging.Uint64("free_bytes", free),
			logging.String(logging.FieldEventType, "disk_recovered"),
		)
		if g.hooks.ResumeCapture != nil {
			if err := g.hooks.ResumeCapture(ctx); err != nil {
				logging.WarnWithContext(g.logger, "resume capture failed", "capture_resume_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "restart capture via the CLI if recording does not resume"),
					logging.String(logging.FieldImpact, "no new segments are being recorded"),
				)
			}
		}
		g.notify(ctx, next, free)
		return
	}

	if next == StatusLow && prev != StatusLow {
		logging.WarnWithContext(g.logger, "disk space low", "disk_low",
			logging.Uint64("free_bytes", free),
			logging.String(logging.FieldErrorHint, "free space on the buffer filesystem before it becomes critical"),
			logging.String(logging.FieldImpact, "capture pauses if space keeps shrinking"),
		)
		g.notify(ctx, next, free)
	}
}

func (g *Guard) notify(ctx context.Context, status Status, free uint64) {
	if g.hooks.Notify == nil {
		return
	}
	g.hooks.Notify(ctx, status, free)
}

func gbToBytes(gb float64) uint64 {
	if gb <= 0 {
		return 0
	}
	return uint64(gb * float64(1<<30))
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}

// FreeBytes reports the bytes available to unprivileged writes at path.
// The assembler consults it for the save floor before starting an attempt.
func FreeBytes(path string) (uint64, error) {
	_, free, err := realStatfs(path)
	return free, err
}
