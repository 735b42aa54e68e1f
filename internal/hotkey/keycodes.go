package hotkey

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Input event constants from the kernel's input-event-codes.h. Only the
// slice the trigger path decodes is defined here.
const (
	evKey   = 0x01
	keyDown = 1 // event value for key-down; 0 is release, 2 autorepeat
)

// keyCodes maps logical function-key names to Linux input event codes.
// F11 and F12 are not contiguous with F1 through F10 in the kernel keymap.
var keyCodes = map[string]uint16{
	"F1":  59,
	"F2":  60,
	"F3":  61,
	"F4":  62,
	"F5":  63,
	"F6":  64,
	"F7":  65,
	"F8":  66,
	"F9":  67,
	"F10": 68,
	"F11": 87,
	"F12": 88,
}

// ParseKeys resolves configured key names to event codes keyed for the
// decode path. Names match case-insensitively. The function row is the
// whole supported set; modifiers and chords are not save triggers.
func ParseKeys(names []string) (map[uint16]string, error) {
	if len(names) == 0 {
		return nil, errors.New("no hotkeys configured")
	}
	keys := make(map[uint16]string, len(names))
	for _, name := range names {
		canonical := strings.ToUpper(strings.TrimSpace(name))
		code, ok := keyCodes[canonical]
		if !ok {
			return nil, fmt.Errorf("unknown hotkey %q (supported: F1 through F12)", name)
		}
		keys[code] = canonical
	}
	return keys, nil
}

// matchPress reports the logical name for a key-down of a watched key.
// Releases and autorepeats never trigger a save.
func matchPress(ev unix.InputEvent, keys map[uint16]string) (string, bool) {
	if ev.Type != evKey || ev.Value != keyDown {
		return "", false
	}
	name, ok := keys[ev.Code]
	return name, ok
}
