package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"replay/internal/assembler"
	"replay/internal/capture"
	"replay/internal/catalog"
	"replay/internal/config"
	"replay/internal/diskguard"
	"replay/internal/hotkey"
	"replay/internal/ledger"
	"replay/internal/logging"
	"replay/internal/notifications"
	"replay/internal/wintitle"
)

// Version identifies the daemon build in status output.
const Version = "0.1.0"

// stopGrace bounds how long Stop waits for an in-flight assembly.
const stopGrace = 30 * time.Second

// Components carries the wired subsystems the daemon coordinates.
// Hotkeys and Titles may be nil; saves then remain available via IPC.
type Components struct {
	Store      *catalog.Store
	Ring       *ledger.Ledger
	Supervisor *capture.Supervisor
	Guard      *diskguard.Guard
	Assembler  *assembler.Assembler
	Hotkeys    *hotkey.Listener
	Titles     *wintitle.Provider
	Notifier   notifications.Service
}

// Daemon owns the replay runtime and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *catalog.Store
	ring       *ledger.Ledger
	supervisor *capture.Supervisor
	guard      *diskguard.Guard
	asm        *assembler.Assembler
	listener   *hotkey.Listener
	titles     *wintitle.Provider
	notifier   notifications.Service
	logPath    string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information for logs and IPC.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at,omitempty"`

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

// New constructs a daemon around initialized subsystems.
func New(cfg *config.Config, parts Components, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if parts.Store == nil || parts.Ring == nil || parts.Supervisor == nil || parts.Guard == nil || parts.Assembler == nil {
		return nil, errors.New("daemon requires catalog, ledger, supervisor, disk guard, and assembler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := parts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      parts.Store,
		ring:       parts.Ring,
		supervisor: parts.Supervisor,
		guard:      parts.Guard,
		asm:        parts.Assembler,
		listener:   parts.Hotkeys,
		titles:     parts.Titles,
		notifier:   notifier,
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		shutdown:   make(chan struct{}),
	}, nil
}

// Start acquires the instance lock and launches every subsystem. Hotkey
// listener failures degrade to CLI-only saves instead of aborting startup.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another replay daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Requests interrupted by a previous shutdown cannot resume: their
	// ring segments are gone by now.
	if failed, err := d.store.FailInFlight(d.ctx, catalog.InterruptedReason); err != nil {
		d.logger.Warn("failed to settle interrupted saves", logging.Error(err))
	} else if failed > 0 {
		d.logger.Info("marked interrupted saves failed", logging.Int64("count", failed))
	}

	if err := d.asm.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start assembler: %w", err)
	}
	if err := d.supervisor.Start(d.ctx); err != nil {
		_ = d.asm.Close(context.Background())
		d.abortStart()
		return fmt.Errorf("start capture supervisor: %w", err)
	}
	if err := d.guard.Start(d.ctx); err != nil {
		d.supervisor.Stop()
		_ = d.asm.Close(context.Background())
		d.abortStart()
		return fmt.Errorf("start disk guard: %w", err)
	}

	if d.listener != nil {
		if err := d.listener.Start(d.ctx); err != nil {
			d.logger.Warn("hotkey listener unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "hotkeys_unavailable"),
				logging.String(logging.FieldImpact, "saves remain available via `replay save`"),
				logging.String(logging.FieldErrorHint, "check /dev/input permissions (input group membership)"),
			)
		} else {
			d.wg.Add(1)
			go d.consumeTriggers(d.ctx)
		}
	}

	d.wg.Add(1)
	go d.report(d.ctx)

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("replay daemon started",
		logging.String("lock", d.lockPath),
		logging.String("buffer_dir", d.cfg.Paths.BufferDir),
		logging.String("clips_dir", d.cfg.Paths.ClipsDir),
	)
	return nil
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop shuts the subsystems down in dependency order. The assembler is
// closed last so an in-flight save can finish within the grace period.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.listener != nil {
		d.listener.Stop()
	}
	d.guard.Stop()
	d.supervisor.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	if err := d.asm.Close(closeCtx); err != nil {
		d.logger.Warn("assembler close", logging.Error(err))
	}
	cancel()

	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("replay daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown asks the process runner to exit. Used by the Stop IPC
// method so `replay stop` terminates the whole process, not just the loop.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested signals when an IPC client asked the daemon to exit.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the active run log file consumed by TailLog.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// consumeTriggers forwards hotkey presses to the assembler. The window
// title is snapshotted here, at press time, because assembly may start
// seconds later under a different foreground window.
func (d *Daemon) consumeTriggers(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case trig, ok := <-d.listener.Triggers():
			if !ok {
				return
			}
			title := ""
			if d.titles != nil {
				title = d.titles.ActiveTitle(ctx)
			}
			_, err := d.asm.Submit(ctx, assembler.Request{
				Title:       title,
				Source:      "hotkey",
				TriggeredAt: trig.PressedAt,
			})
			if err != nil {
				d.logger.Warn("hotkey save rejected",
					logging.Error(err),
					logging.String("key", trig.Key),
					logging.String(logging.FieldEventType, "save_rejected"),
				)
			}
		}
	}
}

// Save queues a clip save on behalf of an IPC client. An empty title is
// filled from the active window, mirroring the hotkey path.
func (d *Daemon) Save(ctx context.Context, seconds int, title string) (*catalog.Clip, error) {
	if !d.running.Load() {
		return nil, errors.New("daemon not running")
	}
	if strings.TrimSpace(title) == "" && d.titles != nil {
		title = d.titles.ActiveTitle(ctx)
	}
	return d.asm.Submit(ctx, assembler.Request{
		Seconds: seconds,
		Title:   title,
		Source:  "cli",
	})
}

// PauseCapture suspends segment recording until Resume.
func (d *Daemon) PauseCapture() error {
	return d.supervisor.Pause()
}

// ResumeCapture restarts recording after a pause.
func (d *Daemon) ResumeCapture() error {
	return d.supervisor.Resume()
}

// RestartCapture forces a capture process restart and resets the retry
// budget, recovering from the unavailable state.
func (d *Daemon) RestartCapture() error {
	return d.supervisor.Restart()
}

// ListClips returns the newest catalog rows for `replay clips`.
func (d *Daemon) ListClips(ctx context.Context, limit int) ([]*catalog.Clip, error) {
	if d.store == nil {
		return nil, errors.New("clip catalog unavailable")
	}
	return d.store.List(ctx, limit)
}

// CatalogHealth returns aggregate clip counts per lifecycle state.
func (d *Daemon) CatalogHealth(ctx context.Context) (catalog.HealthSummary, error) {
	if d.store == nil {
		return catalog.HealthSummary{}, errors.New("clip catalog unavailable")
	}
	return d.store.Health(ctx)
}

// TestNotification sends a test push through the configured surface.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, fmt.Sprintf("notification failed: %v", err), err
	}
	return true, "", nil
}

// Status assembles the full runtime snapshot shared by the status
// reporter, the IPC Status method, and `replay status`.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Version:       Version,
		LockPath:      d.lockPath,
		CatalogPath:   d.cfg.CatalogPath(),
		LogPath:       d.logPath,
		Capture:       d.supervisor.State(),
		Buffer:        d.ring.Stats(),
		Disk:          d.guard.Report(),
		Save:          d.asm.State(),
		Notifications: strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "",
	}
	if st.Running {
		st.StartedAt = d.startedAt
	}
	if d.listener != nil {
		st.HotkeyDevices = d.listener.Devices()
	}
	if last, err := d.lastFinished(ctx); err != nil {
		d.logger.Warn("load last save outcome", logging.Error(err))
	} else {
		st.LastSave = last
	}
	return st
}

// lastFinished returns the most recent save that reached a terminal state,
// success or failure, for "last save result" reporting.
func (d *Daemon) lastFinished(ctx context.Context) (*catalog.Clip, error) {
	clips, err := d.store.List(ctx, 1, catalog.StatusCompleted, catalog.StatusFailed)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, nil
	}
	return clips[0], nil
}
