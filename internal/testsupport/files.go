package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"replay/internal/ledger"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteSegment drops one ring segment fixture into dir and returns its path.
func WriteSegment(t testing.TB, dir string, index int, size int64, mtime time.Time) string {
	t.Helper()

	path := filepath.Join(dir, ledger.FileName(index))
	WriteFile(t, path, size)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

// WriteSegmentRun writes consecutive segment fixtures for every index in
// indices, each one second newer than the last, the oldest aged by age.
func WriteSegmentRun(t testing.TB, dir string, indices []int, size int64, age time.Duration) {
	t.Helper()

	base := time.Now().Add(-age)
	for i, index := range indices {
		WriteSegment(t, dir, index, size, base.Add(time.Duration(i)*time.Second))
	}
}
