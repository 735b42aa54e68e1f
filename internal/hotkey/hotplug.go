package hotkey

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"replay/internal/logging"
)

// hotplugMonitor listens for udev netlink events and attaches or detaches
// keyboard readers as devices come and go. This keeps hotkeys working
// across keyboard reconnects without restarting the daemon.
type hotplugMonitor struct {
	logger *slog.Logger
	attach func(path string)
	detach func(path string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newHotplugMonitor(logger *slog.Logger, attach, detach func(path string)) *hotplugMonitor {
	return &hotplugMonitor{
		logger: logger,
		attach: attach,
		detach: detach,
	}
}

// Start begins listening for udev netlink events.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; keyboard hotplug disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "hotplug_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "keyboards connected later will not trigger saves"),
		)
		return nil // Non-fatal - devices present at startup keep working
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	// Pass quit channel to goroutine to avoid reading m.quit without lock
	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("keyboard hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the hotplug monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("keyboard hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the hotplug monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// monitorLoop reads netlink events and forwards keyboard attach and detach.
func (m *hotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("keyboard hotplug monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "hotplug_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "keyboard hotplug may be missed"),
			)
		}
	}
}

// buildMatcher creates a matcher for keyboard hotplug events.
// Matches: SUBSYSTEM=input, ID_INPUT_KEYBOARD=1, ACTION=add|remove
func (m *hotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":         "input",
			"ID_INPUT_KEYBOARD": "1",
		},
	})
	return rules
}

// handleEvent forwards one matched uevent. Only event nodes matter; the
// parent input device carries no readable stream. A removal that slips
// past the matcher is still caught when the reader's next read fails.
func (m *hotplugMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDevice(uevent)
	if devname == "" || !strings.HasPrefix(filepath.Base(devname), "event") {
		m.logger.Debug("ignoring input event without an event node",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("keyboard connected",
			logging.String(logging.FieldEventType, "hotplug_keyboard_added"),
			logging.String("device", devname),
		)
		if m.attach != nil {
			m.attach(devname)
		}
	case netlink.REMOVE:
		m.logger.Info("keyboard disconnected",
			logging.String(logging.FieldEventType, "hotplug_keyboard_removed"),
			logging.String("device", devname),
		)
		if m.detach != nil {
			m.detach(devname)
		}
	}
}

// extractDevice gets the device path from a uevent. Udev events carry an
// absolute DEVNAME; raw kernel events carry one relative to /dev.
func extractDevice(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if filepath.IsAbs(devname) {
			return devname
		}
		return "/dev/" + devname
	}

	// Construct from DEVPATH (e.g. /devices/.../input/input12/event5)
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	last := parts[len(parts)-1]
	if !strings.HasPrefix(last, "event") {
		return ""
	}
	return "/dev/input/" + last
}
