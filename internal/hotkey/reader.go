package hotkey

import (
	"encoding/binary"
	"io"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// deviceReader decodes the evdev stream of one keyboard device. Each read
// consumes exactly one input_event record, which is how the kernel hands
// them out.
type deviceReader struct {
	path   string
	device io.ReadCloser
	keys   map[uint16]string
	press  func(key, device string)

	closed atomic.Bool
}

// run blocks decoding events until the device is closed or fails. It
// returns nil after Close and the read error when the device vanished
// underneath us, such as an unplug that never produced a udev event.
func (r *deviceReader) run() error {
	for {
		var ev unix.InputEvent
		if err := binary.Read(r.device, binary.NativeEndian, &ev); err != nil {
			if r.closed.Load() {
				return nil
			}
			return err
		}
		if key, ok := matchPress(ev, r.keys); ok {
			r.press(key, r.path)
		}
	}
}

// Close releases the device and makes the pending read return.
func (r *deviceReader) Close() {
	r.closed.Store(true)
	_ = r.device.Close()
}
