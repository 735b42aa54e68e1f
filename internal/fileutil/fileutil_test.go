package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFinalizeRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "clip.tmp")
	final := filepath.Join(dir, "out", "clip.mp4")

	content := []byte("encoded video bytes")
	if err := os.WriteFile(temp, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Finalize(temp, final); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("final content = %q, want %q", got, content)
	}
	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err = %v", err)
	}
}

func TestFinalizeMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := Finalize(filepath.Join(dir, "missing.tmp"), filepath.Join(dir, "clip.mp4")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileContentsStagesAcrossPaths(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := copyFileContents(src, dst); err != nil {
		t.Fatalf("copyFileContents failed: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("dst mode = %v, want 0600", info.Mode().Perm())
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("dst content = %q", got)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")

	got, err := UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath failed: %v", err)
	}
	if got != path {
		t.Fatalf("free path should be unchanged, got %q", got)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath failed: %v", err)
	}
	if want := filepath.Join(dir, "clip (1).mp4"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if err := os.WriteFile(got, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = UniquePath(path)
	if err != nil {
		t.Fatalf("UniquePath failed: %v", err)
	}
	if want := filepath.Join(dir, "clip (2).mp4"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
