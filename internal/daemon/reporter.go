package daemon

import (
	"context"
	"fmt"
	"time"

	"replay/internal/catalog"
	"replay/internal/logging"
)

// report emits one structured status line per interval: segment count,
// buffered seconds, free disk, capture state, and the last save outcome.
func (d *Daemon) report(ctx context.Context) {
	defer d.wg.Done()

	interval := d.cfg.StatusInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.logStatus(ctx)
		}
	}
}

func (d *Daemon) logStatus(ctx context.Context) {
	stats := d.ring.Stats()
	disk := d.guard.Report()
	capState := d.supervisor.State()
	save := d.asm.State()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "status_report"),
		logging.Int("segments", stats.Segments),
		logging.Int("buffered_seconds", int(stats.Buffered.Seconds())),
		logging.Int64("buffer_bytes", stats.TotalBytes),
		logging.String("free_disk", fmt.Sprintf("%.1fGB", disk.FreeGB())),
		logging.String("disk_status", disk.Status.String()),
		logging.String("capture", string(capState.Phase)),
		logging.Bool("assembling", save.Assembling),
	}
	if stats.Gaps > 0 {
		attrs = append(attrs, logging.Int("gaps", stats.Gaps))
	}
	if last, err := d.lastFinished(ctx); err == nil && last != nil {
		attrs = append(attrs, logging.String("last_save", describeOutcome(last)))
	}

	d.logger.Info("status", logging.Args(attrs...)...)
}

// describeOutcome renders a terminal catalog row as a short status token.
func describeOutcome(clip *catalog.Clip) string {
	switch clip.Status {
	case catalog.StatusCompleted:
		return fmt.Sprintf("ok %s (%ds, %s)", clip.OutputPath, int(clip.ActualSeconds), clip.EncodePath)
	case catalog.StatusFailed:
		return fmt.Sprintf("failed: %s", clip.ErrorMessage)
	default:
		return string(clip.Status)
	}
}
