package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"replay/internal/services/ffmpeg"
)

type stubExecutor struct {
	lines []string
	err   error
	calls int
	args  [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	s.calls++
	cloned := append([]string(nil), args...)
	s.args = append(s.args, cloned)
	for _, line := range s.lines {
		onOutput(line)
	}
	return s.err
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffmpeg.New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestConcatCopyBuildsStreamCopyArgs(t *testing.T) {
	exec := &stubExecutor{}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	settings := ffmpeg.DefaultEncodeSettings()
	if err := client.ConcatCopy(context.Background(), "/tmp/list.txt", "/tmp/out.mp4", settings); err != nil {
		t.Fatalf("ConcatCopy returned error: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected one invocation, got %d", exec.calls)
	}
	joined := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"-f concat",
		"-safe 0",
		"-i /tmp/list.txt",
		"-c copy",
		"-movflags +faststart",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-c:v") {
		t.Errorf("copy path must not re-encode, got: %s", joined)
	}
	if last := exec.args[0][len(exec.args[0])-1]; last != "/tmp/out.mp4" {
		t.Errorf("expected output path last, got %q", last)
	}
}

func TestConcatEncodeBuildsEncoderArgs(t *testing.T) {
	exec := &stubExecutor{}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := client.ConcatEncode(context.Background(), "/tmp/list.txt", "/tmp/out.mp4", ffmpeg.DefaultEncodeSettings()); err != nil {
		t.Fatalf("ConcatEncode returned error: %v", err)
	}
	joined := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"-f concat",
		"-c:v libx264",
		"-preset veryfast",
		"-pix_fmt yuv420p",
		"-movflags +faststart",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-c copy") {
		t.Errorf("encode path must not stream copy, got: %s", joined)
	}
}

func TestConcatCopyIncludesOutputTailInError(t *testing.T) {
	exec := &stubExecutor{
		lines: []string{"", "Impossible to open 'buf-00004.ts'", "list.txt: Invalid data found"},
		err:   errors.New("exit status 1"),
	}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = client.ConcatCopy(context.Background(), "/tmp/list.txt", "/tmp/out.mp4", ffmpeg.EncodeSettings{})
	if err == nil {
		t.Fatal("expected error from executor")
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Errorf("expected executor error in message, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("expected output tail in message, got: %v", err)
	}
}

func TestWriteConcatList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	files := []string{"/buf/buf-00003.ts", "/buf/it's here.ts"}
	if err := ffmpeg.WriteConcatList(path, files); err != nil {
		t.Fatalf("WriteConcatList returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	got := string(data)
	want := "file '/buf/buf-00003.ts'\nfile '/buf/it'\\''s here.ts'\n"
	if got != want {
		t.Errorf("list contents mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestWriteConcatListRejectsEmpty(t *testing.T) {
	if err := ffmpeg.WriteConcatList(filepath.Join(t.TempDir(), "list.txt"), nil); err == nil {
		t.Fatal("expected error for empty file list")
	}
}
