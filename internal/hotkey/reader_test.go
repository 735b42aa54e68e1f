package hotkey

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// writeEvent sends one synthetic input_event record in the kernel's wire
// layout. The write returns once the reader consumed the record.
func writeEvent(t *testing.T, w io.Writer, evType, code uint16, value int32) {
	t.Helper()
	ev := unix.InputEvent{Type: evType, Code: code, Value: value}
	if err := binary.Write(w, binary.NativeEndian, &ev); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func TestDeviceReaderEmitsWatchedPresses(t *testing.T) {
	pr, pw := io.Pipe()
	presses := make(chan string, 16)
	r := &deviceReader{
		path:   "/fake/kbd0",
		device: pr,
		keys:   map[uint16]string{62: "F4", 63: "F5"},
		press:  func(key, device string) { presses <- key + "@" + device },
	}

	done := make(chan error, 1)
	go func() { done <- r.run() }()

	writeEvent(t, pw, evKey, 62, keyDown) // F4 down
	writeEvent(t, pw, evKey, 62, 2)       // F4 autorepeat
	writeEvent(t, pw, evKey, 62, 0)       // F4 up
	writeEvent(t, pw, 0, 0, 0)            // sync report
	writeEvent(t, pw, evKey, 30, keyDown) // unwatched key
	writeEvent(t, pw, evKey, 63, keyDown) // F5 down

	r.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v after clean close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit after close")
	}

	close(presses)
	var got []string
	for press := range presses {
		got = append(got, press)
	}
	want := []string{"F4@/fake/kbd0", "F5@/fake/kbd0"}
	if len(got) != len(want) {
		t.Fatalf("presses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("press %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeviceReaderReportsDeviceLoss(t *testing.T) {
	t.Run("stream ends", func(t *testing.T) {
		pr, pw := io.Pipe()
		r := &deviceReader{
			path:   "/fake/kbd0",
			device: pr,
			keys:   map[uint16]string{62: "F4"},
			press:  func(string, string) {},
		}

		done := make(chan error, 1)
		go func() { done <- r.run() }()

		_ = pw.Close()
		select {
		case err := <-done:
			if !errors.Is(err, io.EOF) {
				t.Fatalf("run returned %v, want io.EOF", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("reader did not exit after stream end")
		}
	})

	t.Run("truncated event", func(t *testing.T) {
		pr, pw := io.Pipe()
		r := &deviceReader{
			path:   "/fake/kbd0",
			device: pr,
			keys:   map[uint16]string{62: "F4"},
			press:  func(string, string) {},
		}

		done := make(chan error, 1)
		go func() { done <- r.run() }()

		if _, err := pw.Write(make([]byte, 10)); err != nil {
			t.Fatalf("write partial record: %v", err)
		}
		_ = pw.Close()

		select {
		case err := <-done:
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("run returned %v, want io.ErrUnexpectedEOF", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("reader did not exit after truncated record")
		}
	})
}
