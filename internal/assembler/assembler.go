package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"replay/internal/catalog"
	"replay/internal/config"
	"replay/internal/diskguard"
	"replay/internal/ledger"
	"replay/internal/logging"
	"replay/internal/media/ffprobe"
	"replay/internal/notifications"
	"replay/internal/preview"
	"replay/internal/services"
	"replay/internal/services/ffmpeg"
)

// ReasonReplaced is recorded on a queued request displaced by a newer one.
const ReasonReplaced = "replaced by a newer save request"

const (
	defaultCloseGrace      = 30 * time.Second
	defaultAssemblyTimeout = 10 * time.Minute
	bookkeepingTimeout     = 10 * time.Second
)

// Request is one save trigger with the metadata snapshotted at press time.
type Request struct {
	ID          string
	Title       string
	Seconds     int
	Source      string
	TriggeredAt time.Time
}

// State summarizes assembler activity for status reporting.
type State struct {
	Assembling bool   `json:"assembling"`
	CurrentID  string `json:"current_id,omitempty"`
	Queued     bool   `json:"queued"`
	QueuedID   string `json:"queued_id,omitempty"`
}

type job struct {
	req  Request
	clip *catalog.Clip
}

type (
	validateFunc  func(ctx context.Context, binary, path string) (ffprobe.Result, error)
	freeSpaceFunc func(path string) (uint64, error)
	thumbnailFunc func(clipPath string, durationSeconds float64) (string, error)
)

// Option configures the assembler.
type Option func(*Assembler)

// WithClient substitutes the ffmpeg client (tests inject a fake executor).
func WithClient(client *ffmpeg.Client) Option {
	return func(a *Assembler) {
		if client != nil {
			a.client = client
		}
	}
}

// WithValidator substitutes clip validation.
func WithValidator(fn validateFunc) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.validate = fn
		}
	}
}

// WithFreeSpace substitutes the free-space probe used for the save floor.
func WithFreeSpace(fn freeSpaceFunc) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.freeSpace = fn
		}
	}
}

// WithThumbnailer substitutes thumbnail generation.
func WithThumbnailer(fn thumbnailFunc) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.thumbnail = fn
		}
	}
}

// WithCloseGrace overrides how long Close waits for an in-flight assembly
// before force-terminating its encoder.
func WithCloseGrace(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.closeGrace = d
		}
	}
}

// WithAssemblyTimeout bounds one assembly attempt end to end.
func WithAssemblyTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.assemblyTimeout = d
		}
	}
}

// Assembler owns the save pipeline between trigger and finished clip.
type Assembler struct {
	cfg       *config.Config
	ring      *ledger.Ledger
	store     *catalog.Store
	notifier  notifications.Service
	client    *ffmpeg.Client
	logger    *slog.Logger
	validate  validateFunc
	freeSpace freeSpaceFunc
	thumbnail thumbnailFunc

	closeGrace      time.Duration
	assemblyTimeout time.Duration

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	workCancel context.CancelFunc
	pending    *job
	current    *job

	wake chan struct{}
	wg   sync.WaitGroup
}

// New wires the assembler against the segment ring and clip catalog.
func New(cfg *config.Config, ring *ledger.Ledger, store *catalog.Store, notifier notifications.Service, logger *slog.Logger, opts ...Option) (*Assembler, error) {
	if cfg == nil {
		return nil, errors.New("assembler: config required")
	}
	if ring == nil {
		return nil, errors.New("assembler: ledger required")
	}
	if store == nil {
		return nil, errors.New("assembler: catalog required")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	a := &Assembler{
		cfg:             cfg,
		ring:            ring,
		store:           store,
		notifier:        notifier,
		logger:          logging.NewComponentLogger(logger, "assembler"),
		validate:        ffprobe.ValidateClip,
		freeSpace:       diskguard.FreeBytes,
		closeGrace:      defaultCloseGrace,
		assemblyTimeout: defaultAssemblyTimeout,
		wake:            make(chan struct{}, 1),
	}
	if cfg.Output.Thumbnails {
		a.thumbnail = preview.NewGenerator(logger).Generate
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		client, err := ffmpeg.New(cfg.Capture.FFmpegBinary)
		if err != nil {
			return nil, fmt.Errorf("assembler: %w", err)
		}
		a.client = client
	}
	return a, nil
}

// Start launches the worker loop.
func (a *Assembler) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errors.New("assembler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	// Assemblies run on their own context so a shutdown signal does not
	// kill an encoder mid-clip; Close cancels it only after the grace.
	workCtx, workCancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.workCancel = workCancel
	a.running = true

	a.wg.Add(1)
	go a.run(runCtx, workCtx)
	return nil
}

// Close stops intake, records any queued-but-unstarted request as failed,
// and waits up to the grace period for the in-flight assembly. After the
// grace the encoder is force-terminated via context kill; validation plus
// the temp-name rename guarantee no partial file sits under a final name.
func (a *Assembler) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.cancel
	workCancel := a.workCancel
	a.cancel = nil
	a.workCancel = nil
	queued := a.pending
	a.pending = nil
	a.mu.Unlock()

	if queued != nil {
		if err := a.store.MarkFailed(ctx, queued.clip.ID, catalog.InterruptedReason); err != nil {
			a.logger.Warn("failed to record interrupted save",
				logging.String(logging.FieldRequestID, queued.req.ID),
				logging.Error(err),
			)
		}
		a.logger.Info("queued save interrupted by shutdown",
			logging.String(logging.FieldRequestID, queued.req.ID),
		)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(a.closeGrace)
	defer grace.Stop()
	select {
	case <-done:
		workCancel()
		return nil
	case <-ctx.Done():
	case <-grace.C:
	}

	workCancel()
	<-done
	return services.Wrap(services.ErrTimeout, "assembler", "close", "in-flight assembly force-terminated at shutdown", nil)
}

// Submit queues a save request without blocking the trigger path. While one
// request is assembling, one more may wait; a further submission replaces
// the waiting request and the replaced one is recorded as failed. The
// returned clip row starts in the pending state.
func (a *Assembler) Submit(ctx context.Context, req Request) (*catalog.Clip, error) {
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}
	if req.TriggeredAt.IsZero() {
		req.TriggeredAt = time.Now()
	}
	if req.Seconds <= 0 {
		req.Seconds = a.cfg.Buffer.ClipSeconds
	}

	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return nil, errors.New("assembler: not running")
	}

	clip, err := a.store.NewRequest(ctx, req.ID, req.Title, req.Source, req.Seconds)
	if err != nil {
		return nil, fmt.Errorf("assembler: record request: %w", err)
	}

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		if ferr := a.store.MarkFailed(ctx, clip.ID, catalog.InterruptedReason); ferr != nil {
			a.logger.Warn("failed to record interrupted save",
				logging.String(logging.FieldRequestID, req.ID),
				logging.Error(ferr),
			)
		}
		return nil, errors.New("assembler: not running")
	}
	replaced := a.pending
	a.pending = &job{req: req, clip: clip}
	a.mu.Unlock()

	if replaced != nil {
		if err := a.store.MarkFailed(ctx, replaced.clip.ID, ReasonReplaced); err != nil {
			a.logger.Warn("failed to record replaced save",
				logging.String(logging.FieldRequestID, replaced.req.ID),
				logging.Error(err),
			)
		}
		a.logger.Info("queued save replaced by newer request",
			logging.String("replaced_request_id", replaced.req.ID),
			logging.String(logging.FieldRequestID, req.ID),
		)
	}

	select {
	case a.wake <- struct{}{}:
	default:
	}

	a.logger.Info("save request queued",
		logging.String(logging.FieldRequestID, req.ID),
		logging.String("title", req.Title),
		logging.Int("requested_seconds", req.Seconds),
		logging.String("source", clip.Source),
	)
	return clip, nil
}

// State reports whether a request is assembling and whether one is queued.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	var st State
	if a.current != nil {
		st.Assembling = true
		st.CurrentID = a.current.req.ID
	}
	if a.pending != nil {
		st.Queued = true
		st.QueuedID = a.pending.req.ID
	}
	return st
}
