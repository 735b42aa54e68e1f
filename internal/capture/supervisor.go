package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"log/slog"

	"replay/internal/config"
	"replay/internal/ledger"
	"replay/internal/logging"
	"replay/internal/services"
	"replay/internal/services/ffmpeg"
)

// Phase is the supervisor's externally visible lifecycle state.
type Phase string

const (
	PhaseStopped     Phase = "stopped"
	PhaseRunning     Phase = "running"
	PhasePaused      Phase = "paused"
	PhaseUnavailable Phase = "unavailable"
)

// State is a point-in-time snapshot of the supervisor.
type State struct {
	Phase               Phase     `json:"phase"`
	Pid                 int       `json:"pid,omitempty"`
	StartedAt           time.Time `json:"started_at,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastExitError       string    `json:"last_exit_error,omitempty"`
}

type intent int

const (
	intentNone intent = iota
	intentPause
	intentStop
	intentRestart
)

// Option configures the supervisor.
type Option func(*Supervisor)

// WithLauncher substitutes the process launcher (tests).
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithCommandRunner substitutes the command runner used for display
// geometry detection (tests).
func WithCommandRunner(r commandRunner) Option {
	return func(s *Supervisor) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithRestartDelays overrides the restart backoff bounds.
func WithRestartDelays(initial, max time.Duration) Option {
	return func(s *Supervisor) {
		if initial > 0 {
			s.initialDelay = initial
		}
		if max > 0 {
			s.maxDelay = max
		}
	}
}

// WithWatchInterval overrides the observer loop cadence.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.watchEvery = d
		}
	}
}

// WithStableRunThreshold overrides how long a process must run before the
// failure budget resets.
func WithStableRunThreshold(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stableRun = d
		}
	}
}

// WithTerminateGrace overrides the SIGTERM-to-kill grace period.
func WithTerminateGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithUnavailableHook registers a callback fired when the retry budget is
// spent. The daemon uses it to send a notification.
func WithUnavailableHook(fn func(error)) Option {
	return func(s *Supervisor) {
		s.onUnavailable = fn
	}
}

// Supervisor owns the ffmpeg capture process and the ledger observer loop.
type Supervisor struct {
	cfg    *config.Config
	ring   *ledger.Ledger
	logger *slog.Logger

	launcher      Launcher
	runner        commandRunner
	onUnavailable func(error)

	initialDelay time.Duration
	maxDelay     time.Duration
	watchEvery   time.Duration
	stableRun    time.Duration
	grace        time.Duration
	maxFailures  int

	mu         sync.Mutex
	running    bool
	phase      Phase
	failures   int
	lastExit   error
	proc       Process
	pid        int
	startedAt  time.Time
	exitIntent intent
	paused     bool
	cancel     context.CancelFunc

	resumeCh  chan struct{}
	restartCh chan struct{}
	wg        sync.WaitGroup
}

// NewSupervisor wires a supervisor over the given ledger.
func NewSupervisor(cfg *config.Config, ring *ledger.Ledger, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		return nil, errors.New("capture: config required")
	}
	if ring == nil {
		return nil, errors.New("capture: ledger required")
	}
	componentLogger := logging.NewComponentLogger(logger, "capture")

	initialDelay := cfg.RestartBackoff()
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	watchEvery := cfg.WatchInterval()
	if watchEvery <= 0 {
		watchEvery = time.Second
	}
	maxFailures := cfg.Capture.RestartMaxAttempts
	if maxFailures <= 0 {
		maxFailures = 5
	}

	s := &Supervisor{
		cfg:          cfg,
		ring:         ring,
		logger:       componentLogger,
		launcher:     execLauncher{logger: componentLogger},
		runner:       execCommandRunner{},
		initialDelay: initialDelay,
		maxDelay:     30 * time.Second,
		watchEvery:   watchEvery,
		stableRun:    30 * time.Second,
		grace:        5 * time.Second,
		maxFailures:  maxFailures,
		phase:        PhaseStopped,
		resumeCh:     make(chan struct{}, 1),
		restartCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start clears stale segments and launches the supervise and observer
// loops. It returns once both are running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("capture supervisor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.paused = false
	s.failures = 0
	s.lastExit = nil
	s.mu.Unlock()

	if removed, err := s.ring.ClearStale(); err != nil {
		logging.WarnWithContext(s.logger, "failed to clear stale segments", "stale_segments",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check buffer directory permissions"),
			logging.String(logging.FieldImpact, "old segments may mix into the new ring"),
		)
	} else if removed > 0 {
		s.logger.Info("cleared stale segments from previous run",
			logging.Int("segments_removed", removed),
		)
	}

	s.wg.Add(2)
	go s.supervise(runCtx)
	go s.observe(runCtx)
	return nil
}

// Stop terminates the capture process and halts both loops.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.exitIntent = intentStop
	proc := s.proc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if proc != nil {
		s.terminate(proc)
	}
	s.wg.Wait()
	s.setPhase(PhaseStopped)
}

// Pause terminates the capture process without spending the retry budget.
// Segments already in the ring remain saveable.
func (s *Supervisor) Pause() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("capture supervisor not running")
	}
	if s.paused {
		s.mu.Unlock()
		return nil
	}
	s.paused = true
	proc := s.proc
	if proc != nil {
		s.exitIntent = intentPause
	}
	s.mu.Unlock()

	s.logger.Info("pausing capture")
	if proc != nil {
		s.terminate(proc)
	}
	return nil
}

// Resume relaunches capture after a pause. It also clears the failure
// budget so a fixed environment gets a fresh set of attempts.
func (s *Supervisor) Resume() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("capture supervisor not running")
	}
	if !s.paused {
		s.mu.Unlock()
		return nil
	}
	s.paused = false
	s.failures = 0
	s.mu.Unlock()

	s.logger.Info("resuming capture")
	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// Restart forces a relaunch of the capture process and resets the retry
// budget. It recovers a supervisor parked in the unavailable state.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("capture supervisor not running")
	}
	s.paused = false
	s.failures = 0
	proc := s.proc
	if proc != nil {
		s.exitIntent = intentRestart
	}
	s.mu.Unlock()

	s.logger.Info("restarting capture on request")
	if proc != nil {
		s.terminate(proc)
		return nil
	}
	select {
	case s.restartCh <- struct{}{}:
	default:
	}
	return nil
}

// Healthy reports whether a capture process is currently writing segments.
func (s *Supervisor) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseRunning
}

// State returns a snapshot of the supervisor.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := State{
		Phase:               s.phase,
		Pid:                 s.pid,
		StartedAt:           s.startedAt,
		ConsecutiveFailures: s.failures,
	}
	if s.lastExit != nil {
		state.LastExitError = s.lastExit.Error()
	}
	return state
}

func (s *Supervisor) supervise(ctx context.Context) {
	defer s.wg.Done()
	delay := s.initialDelay
	for {
		if ctx.Err() != nil {
			s.setPhase(PhaseStopped)
			return
		}
		if s.isPaused() {
			s.setPhase(PhasePaused)
			if !s.park(ctx) {
				s.setPhase(PhaseStopped)
				return
			}
			continue
		}

		proc, err := s.launch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setPhase(PhaseStopped)
				return
			}
			s.recordFailure(fmt.Errorf("launch capture: %w", err))
			logging.WarnWithContext(s.logger, "capture launch failed", "capture_launch_failed",
				logging.Error(err),
				logging.Int("consecutive_failures", s.failureCount()),
				logging.String(logging.FieldErrorHint, "verify capture.ffmpeg_binary and display settings"),
				logging.String(logging.FieldImpact, "no segments are being recorded"),
			)
			if s.budgetSpent() {
				if !s.parkUnavailable(ctx) {
					s.setPhase(PhaseStopped)
					return
				}
				delay = s.initialDelay
				continue
			}
			if !sleepCtx(ctx, delay) {
				s.setPhase(PhaseStopped)
				return
			}
			delay = nextDelay(delay, s.maxDelay)
			continue
		}

		// Bind process lifetime to the run context.
		go func(p Process) {
			select {
			case <-ctx.Done():
				s.terminate(p)
			case <-p.Done():
			}
		}(proc)

		started := time.Now()
		exitErr := proc.Wait()
		uptime := time.Since(started)
		reason := s.clearProc()

		switch reason {
		case intentStop:
			s.setPhase(PhaseStopped)
			return
		case intentPause:
			continue
		case intentRestart:
			delay = s.initialDelay
			continue
		}

		if ctx.Err() != nil {
			s.setPhase(PhaseStopped)
			return
		}

		if uptime >= s.stableRun {
			s.resetFailures()
			delay = s.initialDelay
		}
		if exitErr == nil {
			exitErr = errors.New("capture process exited unexpectedly")
		}
		s.recordFailure(exitErr)
		logging.WarnWithContext(s.logger, "capture process exited, restarting", "capture_exit",
			logging.Error(exitErr),
			logging.Int("consecutive_failures", s.failureCount()),
			logging.Duration("uptime", uptime),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg output above"),
			logging.String(logging.FieldImpact, "segments are not written until the restart succeeds"),
		)
		if s.budgetSpent() {
			if !s.parkUnavailable(ctx) {
				s.setPhase(PhaseStopped)
				return
			}
			delay = s.initialDelay
			continue
		}
		if !sleepCtx(ctx, delay) {
			s.setPhase(PhaseStopped)
			return
		}
		delay = nextDelay(delay, s.maxDelay)
	}
}

// observe is the ledger's single writer: it rescans the ring and applies
// retention on every tick.
func (s *Supervisor) observe(ctx context.Context) {
	defer s.wg.Done()
	retention := s.cfg.RetentionDuration()
	ticker := time.NewTicker(s.watchEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ring.Observe(); err != nil {
				logging.WarnWithContext(s.logger, "segment scan failed", "ledger_observe_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "verify the buffer directory is mounted and readable"),
					logging.String(logging.FieldImpact, "save windows may lag behind the recording"),
				)
				continue
			}
			if removed := s.ring.Prune(retention); removed > 0 {
				s.logger.Debug("retention prune",
					logging.Int("segments_removed", removed),
				)
			}
		}
	}
}

func (s *Supervisor) launch(ctx context.Context) (Process, error) {
	spec := s.buildSpec(ctx)
	args := ffmpeg.CaptureArgs(spec)
	proc, err := s.launcher.Launch(ctx, s.cfg.Capture.FFmpegBinary, args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.proc = proc
	s.pid = proc.Pid()
	s.startedAt = time.Now()
	s.exitIntent = intentNone
	s.phase = PhaseRunning
	pausedMeanwhile := s.paused
	if pausedMeanwhile {
		s.exitIntent = intentPause
	}
	s.mu.Unlock()

	s.logger.Info("capture process started",
		logging.Int("pid", proc.Pid()),
		logging.Int("start_number", spec.StartNumber),
		logging.Int("framerate", spec.Framerate),
		logging.String("region", fmt.Sprintf("%dx%d+%d,%d", spec.Width, spec.Height, spec.OffsetX, spec.OffsetY)),
	)

	// A pause that arrived during the launch window is honored immediately.
	if pausedMeanwhile {
		go s.terminate(proc)
	}
	return proc, nil
}

func (s *Supervisor) buildSpec(ctx context.Context) ffmpeg.CaptureSpec {
	cc := s.cfg.Capture
	width, height := cc.Width, cc.Height
	if width <= 0 || height <= 0 {
		w, h, detected := detectRegion(ctx, s.runner)
		width, height = w, h
		if detected {
			s.logger.Debug("detected display geometry",
				logging.String("geometry", fmt.Sprintf("%dx%d", w, h)),
			)
		} else {
			s.logger.Debug("display geometry detection failed, using fallback",
				logging.String("geometry", fmt.Sprintf("%dx%d", w, h)),
			)
		}
	}
	return ffmpeg.CaptureSpec{
		Display:        cc.Display,
		Width:          width,
		Height:         height,
		OffsetX:        cc.OffsetX,
		OffsetY:        cc.OffsetY,
		Framerate:      cc.Framerate,
		DrawMouse:      cc.DrawMouse,
		Encoder:        cc.Encoder,
		Preset:         cc.Preset,
		PixelFormat:    cc.PixelFormat,
		SegmentSeconds: cc.SegmentSeconds,
		StartNumber:    s.ring.NextStartNumber(),
		OutputPattern:  filepath.Join(s.cfg.Paths.BufferDir, ledger.FilePattern()),
	}
}

// terminate asks the process to exit and escalates to kill after the
// grace period.
func (s *Supervisor) terminate(proc Process) {
	select {
	case <-proc.Done():
		return
	default:
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		_ = proc.Kill()
		return
	}
	select {
	case <-proc.Done():
	case <-time.After(s.grace):
		_ = proc.Kill()
	}
}

// park blocks a paused supervisor until resume, restart, or shutdown.
func (s *Supervisor) park(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.resumeCh:
		return true
	case <-s.restartCh:
		return true
	}
}

// parkUnavailable announces the spent retry budget and blocks until a
// manual restart or shutdown.
func (s *Supervisor) parkUnavailable(ctx context.Context) bool {
	s.setPhase(PhaseUnavailable)
	err := services.Wrap(services.ErrCaptureUnavailable, "capture", "supervise",
		fmt.Sprintf("capture disabled after %d consecutive failures", s.failureCount()), s.lastExitError())
	logging.ErrorWithContext(s.logger, "capture unavailable, retry budget spent", "capture_unavailable",
		logging.Error(err),
		logging.Int("consecutive_failures", s.failureCount()),
		logging.String(logging.FieldErrorHint, "fix the capture configuration, then run 'replay restart'"),
		logging.String(logging.FieldImpact, "no new segments are recorded until capture restarts"),
	)
	if s.onUnavailable != nil {
		s.onUnavailable(err)
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.restartCh:
		s.resetFailures()
		return true
	}
}

func (s *Supervisor) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Supervisor) setPhase(phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *Supervisor) clearProc() intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason := s.exitIntent
	s.exitIntent = intentNone
	s.proc = nil
	s.pid = 0
	return reason
}

func (s *Supervisor) recordFailure(err error) {
	s.mu.Lock()
	s.failures++
	s.lastExit = err
	s.mu.Unlock()
}

func (s *Supervisor) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

func (s *Supervisor) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Supervisor) lastExitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExit
}

func (s *Supervisor) budgetSpent() bool {
	return s.failureCount() >= s.maxFailures
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
