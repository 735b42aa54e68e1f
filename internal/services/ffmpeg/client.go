package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg CLI interactions for clip assembly.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an ffmpeg client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// EncodeSettings is the encoder configuration record passed to the concat
// invocations. The fallback path uses every field; the copy path applies
// only ContainerFlags.
type EncodeSettings struct {
	Codec          string
	Preset         string
	PixelFormat    string
	ContainerFlags []string
}

// DefaultEncodeSettings returns the conservative configuration used by the
// fallback path: maximum compatibility over speed or size.
func DefaultEncodeSettings() EncodeSettings {
	return EncodeSettings{
		Codec:          "libx264",
		Preset:         "veryfast",
		PixelFormat:    "yuv420p",
		ContainerFlags: []string{"-movflags", "+faststart"},
	}
}

// ConcatCopy losslessly concatenates the segments in the list file into
// outputPath using the concat demuxer with stream copy.
func (c *Client) ConcatCopy(ctx context.Context, listPath, outputPath string, settings EncodeSettings) error {
	args := []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
	}
	args = append(args, settings.ContainerFlags...)
	args = append(args, outputPath)
	return c.run(ctx, "concat copy", args)
}

// ConcatEncode concatenates the segments in the list file into outputPath,
// decoding and re-encoding every frame with the provided settings.
func (c *Client) ConcatEncode(ctx context.Context, listPath, outputPath string, settings EncodeSettings) error {
	codec := strings.TrimSpace(settings.Codec)
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c:v", codec,
	}
	if preset := strings.TrimSpace(settings.Preset); preset != "" {
		args = append(args, "-preset", preset)
	}
	if pixfmt := strings.TrimSpace(settings.PixelFormat); pixfmt != "" {
		args = append(args, "-pix_fmt", pixfmt)
	}
	args = append(args, settings.ContainerFlags...)
	args = append(args, outputPath)
	return c.run(ctx, "concat encode", args)
}

func (c *Client) run(ctx context.Context, operation string, args []string) error {
	tail := newTailBuffer(12)
	err := c.exec.Run(ctx, c.binary, args, tail.Append)
	if err != nil {
		if diag := tail.String(); diag != "" {
			return fmt.Errorf("ffmpeg %s: %w: %s", operation, err, diag)
		}
		return fmt.Errorf("ffmpeg %s: %w", operation, err)
	}
	return nil
}

// tailBuffer retains the last few output lines for error diagnostics.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Append(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	forward := func(line string) {
		if onOutput != nil {
			onOutput(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
