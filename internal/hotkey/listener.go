package hotkey

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"replay/internal/config"
	"replay/internal/logging"
	"replay/internal/services"
)

// triggerBuffer bounds the channel presses are published on. Anything past
// the assembler's one-deep pending slot is dropped here anyway, so a small
// buffer only has to absorb bursts between daemon loop iterations.
const triggerBuffer = 8

// kbdGlobs are the stable udev symlink patterns keyboards publish under.
var kbdGlobs = []string{
	"/dev/input/by-id/*-event-kbd",
	"/dev/input/by-path/*-kbd",
}

// Trigger describes one hotkey press observed on an input device.
type Trigger struct {
	Key       string
	Device    string
	PressedAt time.Time
}

// deviceOpener abstracts evdev device opens so tests can feed synthetic
// event streams.
type deviceOpener func(path string) (io.ReadCloser, error)

func openEvdev(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Option configures optional listener behavior.
type Option func(*Listener)

// WithDeviceOpener replaces direct evdev device opens.
func WithDeviceOpener(open deviceOpener) Option {
	return func(l *Listener) {
		if open != nil {
			l.open = open
		}
	}
}

// WithoutHotplug disables the udev netlink monitor; only devices present at
// Start are watched. Useful on systems without a udev netlink socket.
func WithoutHotplug() Option {
	return func(l *Listener) {
		l.hotplug = false
	}
}

// Listener watches keyboard devices and publishes presses of the configured
// keys. It owns one reader goroutine per device plus the hotplug monitor.
type Listener struct {
	cfg    *config.Config
	logger *slog.Logger

	keys     map[uint16]string
	open     deviceOpener
	hotplug  bool
	triggers chan Trigger

	mu      sync.Mutex
	running bool
	readers map[string]*deviceReader
	monitor *hotplugMonitor
	wg      sync.WaitGroup
}

// New builds a listener for the configured hotkeys.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Listener, error) {
	if cfg == nil {
		return nil, errors.New("hotkey: config required")
	}
	keys, err := ParseKeys(cfg.Hotkeys.Keys)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "hotkey", "new", "invalid hotkeys.keys", err)
	}

	l := &Listener{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "hotkey"),
		keys:     keys,
		open:     openEvdev,
		hotplug:  true,
		triggers: make(chan Trigger, triggerBuffer),
		readers:  make(map[string]*deviceReader),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Start opens the configured or discovered keyboard devices and begins
// publishing presses. Unreadable or absent devices are warnings, not
// errors: the hotplug monitor attaches keyboards as they appear, and saves
// remain reachable over IPC in the meantime.
func (l *Listener) Start(ctx context.Context) error {
	if !l.cfg.Hotkeys.Enabled {
		l.logger.Info("hotkey listener disabled by configuration",
			logging.String(logging.FieldEventType, "hotkey_disabled"),
		)
		return nil
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true

	candidates := discoverDevices(l.cfg.Hotkeys.Devices)
	for _, path := range candidates {
		l.attachLocked(path)
	}
	attached := len(l.readers)
	if l.hotplug {
		l.monitor = newHotplugMonitor(l.logger, l.attachDevice, l.detachDevice)
	}
	monitor := l.monitor
	l.mu.Unlock()

	if err := monitor.Start(ctx); err != nil {
		return err
	}

	if attached == 0 {
		logging.WarnWithContext(l.logger, "no keyboard devices available", "hotkey_devices_unavailable",
			logging.Int("candidates", len(candidates)),
			logging.String(logging.FieldErrorHint, "add the daemon user to the input group or set hotkeys.devices"),
			logging.String(logging.FieldImpact, "hotkey saves wait for a keyboard; 'replay save' still works"),
		)
	}

	l.logger.Info("hotkey listener started",
		logging.String(logging.FieldEventType, "hotkey_listener_started"),
		logging.Int("devices", attached),
		logging.String("keys", strings.Join(l.cfg.Hotkeys.Keys, ",")),
	)
	return nil
}

// Stop detaches all readers and halts the hotplug monitor. The trigger
// channel is never closed; it simply stops receiving events.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	monitor := l.monitor
	l.monitor = nil
	readers := l.readers
	l.readers = make(map[string]*deviceReader)
	l.mu.Unlock()

	monitor.Stop()
	for _, r := range readers {
		r.Close()
	}
	l.wg.Wait()

	l.logger.Info("hotkey listener stopped",
		logging.String(logging.FieldEventType, "hotkey_listener_stopped"),
	)
}

// Triggers returns the channel presses are published on. Callers select
// against their own shutdown signal; the channel is never closed.
func (l *Listener) Triggers() <-chan Trigger {
	return l.triggers
}

// Devices reports the event nodes currently being watched.
func (l *Listener) Devices() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.readers))
	for path := range l.readers {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// attachDevice wires a reader for a hot-plugged keyboard.
func (l *Listener) attachDevice(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.attachLocked(path)
}

// detachDevice drops the reader for a removed keyboard.
func (l *Listener) detachDevice(path string) {
	l.mu.Lock()
	resolved := resolvePath(path)
	r := l.readers[resolved]
	delete(l.readers, resolved)
	l.mu.Unlock()

	if r == nil {
		return
	}
	r.Close()
	l.logger.Info("keyboard device detached",
		logging.String(logging.FieldEventType, "hotkey_device_detached"),
		logging.String("device", resolved),
	)
}

// attachLocked opens one device and spawns its reader. Callers hold l.mu.
// Readers are keyed by resolved path so the by-id and by-path aliases of
// the same event node coalesce into one reader.
func (l *Listener) attachLocked(path string) {
	resolved := resolvePath(path)
	if _, ok := l.readers[resolved]; ok {
		return
	}
	device, err := l.open(resolved)
	if err != nil {
		logging.WarnWithContext(l.logger, "cannot open input device", "hotkey_device_open_failed",
			logging.String("device", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check read permission on /dev/input (input group membership)"),
			logging.String(logging.FieldImpact, "presses on this keyboard will not trigger saves"),
		)
		return
	}

	r := &deviceReader{
		path:   resolved,
		device: device,
		keys:   l.keys,
		press:  l.emit,
	}
	l.readers[resolved] = r
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.dropReader(resolved, r, r.run())
	}()

	l.logger.Info("watching keyboard device",
		logging.String(logging.FieldEventType, "hotkey_device_attached"),
		logging.String("device", resolved),
	)
}

// dropReader forgets a reader whose run loop ended. A non-nil error means
// the device disappeared without a clean close or a udev remove event.
func (l *Listener) dropReader(path string, r *deviceReader, err error) {
	l.mu.Lock()
	if l.readers[path] == r {
		delete(l.readers, path)
	}
	running := l.running
	l.mu.Unlock()

	if err == nil || !running {
		return
	}
	logging.WarnWithContext(l.logger, "keyboard device lost", "hotkey_device_lost",
		logging.String("device", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "reconnect the keyboard; hotplug will reattach it"),
		logging.String(logging.FieldImpact, "presses on this keyboard no longer trigger saves"),
	)
}

// emit publishes a press without ever blocking the reader goroutine. A full
// channel means saves are already queued up; the press is dropped here and
// the consumer's queueing policy arbitrates the rest.
func (l *Listener) emit(key, device string) {
	trigger := Trigger{Key: key, Device: device, PressedAt: time.Now()}
	select {
	case l.triggers <- trigger:
		l.logger.Info("save hotkey pressed",
			logging.String(logging.FieldEventType, "hotkey_pressed"),
			logging.String("key", key),
			logging.String("device", device),
		)
	default:
		l.logger.Debug("hotkey press dropped, trigger channel full",
			logging.String("key", key),
			logging.String("device", device),
		)
	}
}

// discoverDevices returns the explicit device list when one is configured
// and otherwise scans the udev symlink directories for keyboards.
func discoverDevices(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	var found []string
	for _, pattern := range kbdGlobs {
		matches, _ := filepath.Glob(pattern)
		found = append(found, matches...)
	}
	sort.Strings(found)
	return found
}

// resolvePath follows udev symlinks to the underlying event node. Paths
// that cannot be resolved pass through unchanged.
func resolvePath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}
