package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"replay/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replayd.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\nd\ne\n")

	result, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 2})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "d" || result.Lines[1] != "e" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Cursor != int64(len("a\nb\nc\nd\ne\n")) {
		t.Fatalf("cursor = %d, want end of file", result.Cursor)
	}
}

func TestTailLastLinesShortFile(t *testing.T) {
	path := writeLog(t, "only\n")

	result, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 50})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestTailZeroLinesReturnsCursorOnly(t *testing.T) {
	path := writeLog(t, "a\nb\n")

	result, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines, got %#v", result.Lines)
	}
	if result.Cursor != 4 {
		t.Fatalf("cursor = %d, want 4", result.Cursor)
	}
}

func TestTailResumesFromCursor(t *testing.T) {
	path := writeLog(t, "start\n")

	first, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	appendLog(t, path, "second\nthird\n")

	next, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: first.Cursor})
	if err != nil {
		t.Fatalf("resume tail: %v", err)
	}
	if len(next.Lines) != 2 || next.Lines[0] != "second" || next.Lines[1] != "third" {
		t.Fatalf("unexpected lines: %#v", next.Lines)
	}

	again, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: next.Cursor})
	if err != nil {
		t.Fatalf("repeat tail: %v", err)
	}
	if len(again.Lines) != 0 || again.Cursor != next.Cursor {
		t.Fatalf("expected no new lines at same cursor, got %#v at %d", again.Lines, again.Cursor)
	}
}

func TestTailMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")

	result, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 10})
	if err != nil {
		t.Fatalf("tail of missing file should not error, got %v", err)
	}
	if len(result.Lines) != 0 || result.Cursor != 0 {
		t.Fatalf("expected empty result, got %#v at %d", result.Lines, result.Cursor)
	}
}

func TestTailDirectoryIsError(t *testing.T) {
	if _, err := logs.Tail(context.Background(), t.TempDir(), logs.TailRequest{Cursor: -1, Lines: 10}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestTailCursorBeyondEndSkipsToEnd(t *testing.T) {
	path := writeLog(t, "a\nb\n")

	result, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: 9999})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines, got %#v", result.Lines)
	}
	if result.Cursor != 4 {
		t.Fatalf("cursor = %d, want clamped to size 4", result.Cursor)
	}
}

func TestTailLongPollPicksUpAppends(t *testing.T) {
	path := writeLog(t, "start\n")

	first, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func(cursor int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailRequest{Cursor: cursor, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("long poll: %v", err)
			return
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected lines: %#v", res.Lines)
		}
	}(first.Cursor)

	time.Sleep(200 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("long poll did not return")
	}
}

func TestTailLongPollHonorsContext(t *testing.T) {
	path := writeLog(t, "start\n")

	first, err := logs.Tail(context.Background(), path, logs.TailRequest{Cursor: -1, Lines: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func(cursor int64) {
		_, err := logs.Tail(ctx, path, logs.TailRequest{Cursor: cursor, Wait: time.Minute})
		done <- err
	}(first.Cursor)

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error from cancelled long poll")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll ignored context cancellation")
	}
}
