package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"replay/internal/assembler"
	"replay/internal/capture"
	"replay/internal/catalog"
	"replay/internal/config"
	"replay/internal/daemon"
	"replay/internal/diskguard"
	"replay/internal/hotkey"
	"replay/internal/ipc"
	"replay/internal/ledger"
	"replay/internal/logging"
	"replay/internal/notifications"
	"replay/internal/preflight"
	"replay/internal/wintitle"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// Run starts the replay daemon runtime loop and blocks until a signal
// arrives or an IPC client requests shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("replay-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update replay.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "replay-*.log", Exclude: []string{logPath}},
	)

	if result, failed := preflight.FatalFailure(preflight.RunAll(cfg)); failed {
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported check and restart the daemon"),
		)
		return fmt.Errorf("preflight check %q failed: %s", result.Name, result.Detail)
	}

	pidPath := cfg.PidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	parts, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, parts, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// The instance lock inside Start must be held before the IPC server
	// replaces any stale socket, or a second daemon could unlink the
	// socket of a live one.
	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the buffer directory and capture configuration"),
		)
		return err
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		d.Stop()
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
	case <-d.ShutdownRequested():
	}
	logger.Info("replay daemon shutting down")
	d.Stop()
	return nil
}

// buildComponents wires the daemon subsystems in dependency order. The
// disk guard pauses capture and prunes the ring, the supervisor surfaces
// permanent capture failures through the notifier, and the hotkey
// listener stays nil when disabled.
func buildComponents(cfg *config.Config, logger *slog.Logger) (daemon.Components, error) {
	store, err := catalog.Open(cfg)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("open clip catalog: %w", err)
	}

	ring, err := ledger.New(cfg.Paths.BufferDir, cfg.SegmentDuration(), cfg.ClipDuration(), logger)
	if err != nil {
		store.Close()
		return daemon.Components{}, fmt.Errorf("init segment ledger: %w", err)
	}
	if removed, err := ring.ClearStale(); err != nil {
		logger.Warn("failed to clear stale segments", logging.Error(err))
	} else if removed > 0 {
		logger.Info("cleared stale segments from previous run", logging.Int("count", removed))
	}

	notifier := notifications.NewService(cfg)

	supervisor, err := capture.NewSupervisor(cfg, ring, logger,
		capture.WithUnavailableHook(func(captureErr error) {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if nerr := notifier.NotifyCaptureUnavailable(notifyCtx, captureErr); nerr != nil {
				logger.Debug("capture unavailable notification failed", logging.Error(nerr))
			}
		}),
	)
	if err != nil {
		store.Close()
		return daemon.Components{}, fmt.Errorf("init capture supervisor: %w", err)
	}

	guard, err := diskguard.New(cfg, logger, diskguard.Hooks{
		PauseCapture:    func(context.Context) error { return supervisor.Pause() },
		ResumeCapture:   func(context.Context) error { return supervisor.Resume() },
		PruneAggressive: ring.PruneAggressive,
		Notify: func(ctx context.Context, status diskguard.Status, freeBytes uint64) {
			freeGB := float64(freeBytes) / (1 << 30)
			var nerr error
			switch status {
			case diskguard.StatusLow:
				nerr = notifier.NotifyDiskLow(ctx, freeGB)
			case diskguard.StatusCritical:
				nerr = notifier.NotifyDiskCritical(ctx, freeGB)
			default:
				nerr = notifier.NotifyDiskRecovered(ctx, freeGB)
			}
			if nerr != nil {
				logger.Debug("disk notification failed", logging.Error(nerr))
			}
		},
	})
	if err != nil {
		store.Close()
		return daemon.Components{}, fmt.Errorf("init disk guard: %w", err)
	}

	asm, err := assembler.New(cfg, ring, store, notifier, logger)
	if err != nil {
		store.Close()
		return daemon.Components{}, fmt.Errorf("init assembler: %w", err)
	}

	var listener *hotkey.Listener
	if cfg.Hotkeys.Enabled {
		listener, err = hotkey.New(cfg, logger)
		if err != nil {
			store.Close()
			return daemon.Components{}, fmt.Errorf("init hotkey listener: %w", err)
		}
	}

	return daemon.Components{
		Store:      store,
		Ring:       ring,
		Supervisor: supervisor,
		Guard:      guard,
		Assembler:  asm,
		Hotkeys:    listener,
		Titles:     wintitle.New(logger),
		Notifier:   notifier,
	}, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "replay.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
