// Package hotkey turns keyboard presses into save triggers.
//
// A listener opens the configured evdev devices, or discovers keyboards
// under /dev/input/by-id and /dev/input/by-path, decodes key-down events
// for the configured function keys, and publishes them on a bounded
// channel. A udev netlink monitor attaches readers for hot-plugged
// keyboards and detaches them on removal. Nothing downstream runs on a
// reader goroutine, and a full channel drops the press at the boundary:
// the consumer of the trigger channel owns queueing policy.
//
// Missing or unreadable devices degrade the listener, never the daemon.
// Saves stay reachable over IPC while no keyboard is attached.
package hotkey
