package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"log/slog"

	"replay/internal/logging"
)

// Process is a handle on a launched capture process.
type Process interface {
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	Signal(sig os.Signal) error
	Kill() error
	Pid() int
}

// Launcher starts capture processes. Tests substitute a fake.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (Process, error)
}

// commandRunner abstracts one-shot command output capture (xrandr).
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// execLauncher runs the real ffmpeg binary. Termination is managed by the
// supervisor (SIGTERM then kill), so the command is not bound to ctx.
type execLauncher struct {
	logger *slog.Logger
}

func (l execLauncher) Launch(_ context.Context, binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture process: %w", err)
	}

	proc := &execProcess{cmd: cmd, done: make(chan struct{})}

	var scanners sync.WaitGroup
	scan := func(r io.Reader) {
		defer scanners.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			proc.appendTail(line)
			if l.logger != nil {
				l.logger.Debug("ffmpeg output", logging.String("line", line))
			}
		}
	}
	scanners.Add(2)
	go scan(stderr)
	go scan(stdout)

	go func() {
		scanners.Wait()
		err := cmd.Wait()
		if err != nil {
			if tail := proc.tailText(); tail != "" {
				err = fmt.Errorf("%w: %s", err, tail)
			}
		}
		proc.finish(err)
	}()
	return proc, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	tail    []string
	waitErr error
}

const processTailLines = 8

func (p *execProcess) appendTail(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > processTailLines {
		p.tail = p.tail[len(p.tail)-processTailLines:]
	}
}

func (p *execProcess) tailText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.tail, " | ")
}

func (p *execProcess) finish(err error) {
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}
