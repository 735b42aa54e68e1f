package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"replay/internal/assembler"
	"replay/internal/capture"
	"replay/internal/catalog"
	"replay/internal/config"
	"replay/internal/daemon"
	"replay/internal/diskguard"
	"replay/internal/ipc"
	"replay/internal/ledger"
	"replay/internal/logging"
	"replay/internal/media/ffprobe"
	"replay/internal/services/ffmpeg"
	"replay/internal/testsupport"
)

type fakeProcess struct {
	mu     sync.Mutex
	done   chan struct{}
	err    error
	exited bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) exit(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.err = err
	close(p.done)
}

func (p *fakeProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Signal(sig os.Signal) error {
	if sig == syscall.SIGTERM {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.exit(errors.New("killed"))
	return nil
}

func (p *fakeProcess) Pid() int { return 4242 }

type fakeLauncher struct{}

func (fakeLauncher) Launch(context.Context, string, []string) (capture.Process, error) {
	return newFakeProcess(), nil
}

type copyExecutor struct{}

func (copyExecutor) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	if len(args) == 0 {
		return errors.New("no args")
	}
	return os.WriteFile(args[len(args)-1], []byte("clip"), 0o644)
}

func okValidator(_ context.Context, _ string, path string) (ffprobe.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video"}},
		Format: ffprobe.Format{
			Duration: "30.00",
			Size:     strconv.FormatInt(info.Size(), 10),
		},
	}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *catalog.Store
	ring       *ledger.Ledger
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	logPath    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	cfg.Capture.Width = 1280
	cfg.Capture.Height = 720
	cfg.Output.Thumbnails = false

	logPath := filepath.Join(cfg.Paths.LogDir, "replay-test.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "replay", "config.toml")
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	ring, err := ledger.New(cfg.Paths.BufferDir, cfg.SegmentDuration(), cfg.ClipDuration(), logger)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	store := testsupport.MustOpenCatalog(t, cfg)

	supervisor, err := capture.NewSupervisor(cfg, ring, logger, capture.WithLauncher(fakeLauncher{}))
	if err != nil {
		t.Fatalf("capture.NewSupervisor: %v", err)
	}
	guard, err := diskguard.New(cfg, logger, diskguard.Hooks{
		PauseCapture:    func(context.Context) error { return supervisor.Pause() },
		ResumeCapture:   func(context.Context) error { return supervisor.Resume() },
		PruneAggressive: ring.PruneAggressive,
	}, diskguard.WithStatfs(func(string) (uint64, uint64, error) {
		return 100 << 30, 50 << 30, nil
	}))
	if err != nil {
		t.Fatalf("diskguard.New: %v", err)
	}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(copyExecutor{}))
	if err != nil {
		t.Fatalf("ffmpeg.New: %v", err)
	}
	asm, err := assembler.New(cfg, ring, store, nil, logger,
		assembler.WithClient(client),
		assembler.WithValidator(okValidator),
		assembler.WithFreeSpace(func(string) (uint64, error) { return 50 << 30, nil }),
	)
	if err != nil {
		t.Fatalf("assembler.New: %v", err)
	}

	d, err := daemon.New(cfg, daemon.Components{
		Store:      store,
		Ring:       ring,
		Supervisor: supervisor,
		Guard:      guard,
		Assembler:  asm,
	}, logger, logPath)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		ring:       ring,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		logPath:    logPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func waitClipStatus(t *testing.T, store *catalog.Store, id int64, want catalog.Status) *catalog.Clip {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last *catalog.Clip
	for time.Now().Before(deadline) {
		clip, err := store.GetByID(context.Background(), id)
		if err == nil && clip != nil {
			last = clip
			if clip.Status == want {
				return clip
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("clip %d never reached %s (last: %+v)", id, want, last)
	return nil
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
