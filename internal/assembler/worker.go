package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"replay/internal/catalog"
	"replay/internal/fileutil"
	"replay/internal/logging"
	"replay/internal/media/ffprobe"
	"replay/internal/services"
	"replay/internal/services/ffmpeg"
	"replay/internal/textutil"
)

// outcome carries everything a successful assembly recorded on disk.
type outcome struct {
	finalPath     string
	thumbnailPath string
	sizeBytes     int64
	actualSeconds float64
	segmentCount  int
	encodePath    catalog.EncodePath
}

func (a *Assembler) run(ctx, workCtx context.Context) {
	defer a.wg.Done()
	for {
		j := a.take()
		if j == nil {
			select {
			case <-ctx.Done():
				return
			case <-a.wake:
				continue
			}
		}
		a.process(workCtx, j)
	}
}

// take moves the queued request into the current slot. Submit and Close
// manipulate the pending slot under the same lock, so a job leaves the
// slot exactly once.
func (a *Assembler) take() *job {
	a.mu.Lock()
	defer a.mu.Unlock()
	j := a.pending
	a.pending = nil
	a.current = j
	return j
}

func (a *Assembler) process(workCtx context.Context, j *job) {
	defer func() {
		a.mu.Lock()
		a.current = nil
		a.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(workCtx, a.assemblyTimeout)
	defer cancel()
	ctx = services.WithRequestID(ctx, j.req.ID)

	logger := a.logger.With(logging.String(logging.FieldRequestID, j.req.ID))
	started := time.Now()

	if err := a.store.MarkAssembling(ctx, j.clip.ID); err != nil {
		logging.WarnWithContext(logger, "save request no longer dispatchable", "save_dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the request was failed by a shutdown or replaced in the queue"),
			logging.String(logging.FieldImpact, "this save request is skipped"),
		)
		return
	}

	logger.Info("assembly started",
		logging.String(logging.FieldEventType, "assembly_start"),
		logging.String("title", j.req.Title),
		logging.Int("requested_seconds", j.req.Seconds),
	)

	out, err := a.assemble(ctx, logger, j)
	if err != nil {
		a.fail(logger, j, err)
		return
	}

	if a.thumbnail != nil {
		thumb, terr := a.thumbnail(out.finalPath, out.actualSeconds)
		if terr != nil {
			logging.WarnWithContext(logger, "thumbnail generation failed", "thumbnail_failed",
				logging.Error(terr),
				logging.String(logging.FieldErrorHint, "the clip itself saved fine; check that ffmpeg supports mjpeg output"),
				logging.String(logging.FieldImpact, "no preview image for this clip"),
			)
		} else {
			out.thumbnailPath = thumb
		}
	}

	bookCtx, bookCancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer bookCancel()

	if err := a.store.MarkCompleted(bookCtx, j.clip.ID, catalog.Completion{
		OutputPath:    out.finalPath,
		ThumbnailPath: out.thumbnailPath,
		SizeBytes:     out.sizeBytes,
		ActualSeconds: out.actualSeconds,
		SegmentCount:  out.segmentCount,
		EncodePath:    out.encodePath,
	}); err != nil {
		logging.WarnWithContext(logger, "failed to record completed save", "catalog_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the catalog database under the log directory"),
			logging.String(logging.FieldImpact, "the clip exists but 'replay clips' will not list it as completed"),
		)
	}

	if err := a.notifier.NotifyClipSaved(bookCtx, filepath.Base(out.finalPath), time.Duration(out.actualSeconds*float64(time.Second)), out.sizeBytes); err != nil {
		logger.Debug("clip saved notification failed", logging.Error(err))
	}

	logger.Info("clip saved",
		logging.String(logging.FieldEventType, "save_complete"),
		logging.String("clip", out.finalPath),
		logging.String("encode_path", string(out.encodePath)),
		logging.Float64("duration_seconds", out.actualSeconds),
		logging.Int64("size_bytes", out.sizeBytes),
		logging.Int("segments", out.segmentCount),
		logging.Duration("assembly_duration", time.Since(started)),
	)
}

func (a *Assembler) assemble(ctx context.Context, logger *slog.Logger, j *job) (outcome, error) {
	free, err := a.freeSpace(a.cfg.Paths.ClipsDir)
	if err != nil {
		logging.WarnWithContext(logger, "save floor check failed", "disk_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the clips directory is mounted and readable"),
			logging.String(logging.FieldImpact, "the save proceeds without a free-space guarantee"),
		)
	} else if floor := uint64(a.cfg.Disk.SaveFloorMB) * (1 << 20); free < floor {
		return outcome{}, services.Wrap(services.ErrDiskCritical, "assembler", "save",
			fmt.Sprintf("%d MB free is below the %d MB save floor", free/(1<<20), a.cfg.Disk.SaveFloorMB), nil)
	}

	window, pin, err := a.ring.PinWindow(time.Duration(j.req.Seconds) * time.Second)
	if err != nil {
		return outcome{}, err
	}
	defer pin.Release()

	listPath := filepath.Join(a.cfg.Paths.BufferDir, j.req.ID+".concat")
	if err := ffmpeg.WriteConcatList(listPath, window.Paths()); err != nil {
		return outcome{}, services.Wrap(services.ErrAssemblyFailed, "assembler", "save", "write concat list", err)
	}
	defer os.Remove(listPath)

	ext := "." + a.cfg.Output.Container
	tempPath := filepath.Join(a.cfg.Paths.ClipsDir, j.req.ID+".tmp"+ext)
	defer os.Remove(tempPath)

	encodePath, probe, err := a.encode(ctx, logger, j, listPath, tempPath)
	if err != nil {
		return outcome{}, err
	}

	actualSeconds := probe.DurationSeconds()
	if nominal := window.Duration.Seconds(); actualSeconds > 0 && math.Abs(actualSeconds-nominal) > a.cfg.SegmentDuration().Seconds() {
		logger.Debug("container duration drifts from window arithmetic",
			logging.Float64("container_seconds", actualSeconds),
			logging.Float64("window_seconds", nominal),
		)
	}

	finalPath := filepath.Join(a.cfg.Paths.ClipsDir, clipFileName(j.req.TriggeredAt, window.DurationSeconds(), j.req.Title, ext))
	finalPath, err = fileutil.UniquePath(finalPath)
	if err != nil {
		return outcome{}, services.Wrap(services.ErrAssemblyFailed, "assembler", "save", "resolve output name", err)
	}
	if err := fileutil.Finalize(tempPath, finalPath); err != nil {
		return outcome{}, services.Wrap(services.ErrAssemblyFailed, "assembler", "save", "finalize clip", err)
	}

	out := outcome{
		finalPath:     finalPath,
		actualSeconds: actualSeconds,
		segmentCount:  len(window.Segments),
		encodePath:    encodePath,
	}
	if info, err := os.Stat(finalPath); err == nil {
		out.sizeBytes = info.Size()
	}
	return out, nil
}

// encode runs the fast lossless concat and, when it produces a broken or
// unplayable file, exactly one conservative re-encode of the same window.
func (a *Assembler) encode(ctx context.Context, logger *slog.Logger, j *job, listPath, tempPath string) (catalog.EncodePath, ffprobe.Result, error) {
	settings := ffmpeg.DefaultEncodeSettings()

	if err := a.store.SetEncodePath(ctx, j.clip.ID, catalog.EncodeCopy); err != nil {
		logger.Debug("failed to record encode path", logging.Error(err))
	}
	probe, copyErr := a.attempt(ctx, tempPath, func() error {
		return a.client.ConcatCopy(ctx, listPath, tempPath, settings)
	})
	if copyErr == nil {
		return catalog.EncodeCopy, probe, nil
	}

	logging.WarnWithContext(logger, "lossless concat failed, re-encoding", "assembly_fallback",
		logging.Error(copyErr),
		logging.String(logging.FieldErrorHint, "stream parameters likely changed across a capture restart"),
		logging.String(logging.FieldImpact, "this save takes longer and re-encodes the video"),
	)
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", ffprobe.Result{}, services.Wrap(services.ErrAssemblyFailed, "assembler", "save", "remove broken fast-path output", err)
	}

	if err := a.store.SetEncodePath(ctx, j.clip.ID, catalog.EncodeReencode); err != nil {
		logger.Debug("failed to record encode path", logging.Error(err))
	}
	probe, encodeErr := a.attempt(ctx, tempPath, func() error {
		return a.client.ConcatEncode(ctx, listPath, tempPath, settings)
	})
	if encodeErr == nil {
		return catalog.EncodeReencode, probe, nil
	}
	return "", ffprobe.Result{}, services.Wrap(services.ErrAssemblyFailed, "assembler", "save",
		fmt.Sprintf("fast path: %v; fallback", copyErr), encodeErr)
}

// attempt runs one encoder invocation and validates its output.
func (a *Assembler) attempt(ctx context.Context, tempPath string, run func() error) (ffprobe.Result, error) {
	if err := run(); err != nil {
		return ffprobe.Result{}, err
	}
	return a.validate(ctx, a.cfg.Capture.FFprobeBinary, tempPath)
}

// fail records the outcome on the catalog row and notifies. Bookkeeping
// runs on a fresh context so a force-terminated assembly still ends as a
// failed row instead of a stuck assembling one.
func (a *Assembler) fail(logger *slog.Logger, j *job, err error) {
	bookCtx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	logging.ErrorWithContext(logger, "save failed", "save_failed",
		logging.Error(err),
		logging.String("error_class", services.Classify(err)),
		logging.String(logging.FieldErrorHint, "run 'replay status' and check free space and capture health"),
		logging.String(logging.FieldImpact, "no clip was produced for this request"),
	)

	if merr := a.store.MarkFailed(bookCtx, j.clip.ID, err.Error()); merr != nil {
		logger.Warn("failed to record save failure", logging.Error(merr))
	}
	if nerr := a.notifier.NotifySaveFailed(bookCtx, err.Error()); nerr != nil {
		logger.Debug("save failed notification failed", logging.Error(nerr))
	}
}

// clipFileName builds `<timestamp>_<seconds>s_<title><ext>`. The timestamp
// keeps millisecond precision so rapid saves land on distinct names.
func clipFileName(triggeredAt time.Time, seconds int, title, ext string) string {
	return fmt.Sprintf("%s_%ds_%s%s",
		triggeredAt.Format("20060102_150405.000"),
		seconds,
		textutil.SanitizeTitle(title),
		ext,
	)
}
