package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"replay/internal/assembler"
	"replay/internal/capture"
	"replay/internal/catalog"
	"replay/internal/diskguard"
	"replay/internal/ipc"
	"replay/internal/preflight"
)

func renderOnlineStatus(cmd *cobra.Command, status *ipc.StatusResponse) error {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Replay", statusOK,
		fmt.Sprintf("Running (pid %d, version %s)", status.PID, status.Version), colorize))
	if started, err := time.Parse(time.RFC3339, status.StartedAt); err == nil {
		uptime := time.Since(started).Round(time.Second)
		fmt.Fprintln(stdout, renderStatusLine("Uptime", statusInfo, uptime.String(), colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Log file", statusInfo, status.LogPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Notifications", statusInfo,
		fmt.Sprintf("configured: %s", yesNo(status.Notifications)), colorize))
	if len(status.HotkeyDevices) > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Hotkey devices", statusOK,
			strings.Join(status.HotkeyDevices, ", "), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Hotkey devices", statusInfo, "none", colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Capture", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, captureLine(status.Capture, colorize))
	if status.Capture.ConsecutiveFailures > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Restarts", statusWarn,
			fmt.Sprintf("%d consecutive failure(s)", status.Capture.ConsecutiveFailures), colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Buffer", colorize) {
		fmt.Fprintln(stdout, line)
	}
	buf := status.Buffer
	fmt.Fprintln(stdout, renderStatusLine("Segments", statusInfo,
		fmt.Sprintf("%d (%d complete)", buf.Segments, buf.Complete), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Buffered", statusInfo,
		buf.Buffered.Round(time.Second).String(), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Size", statusInfo, formatBytes(buf.TotalBytes), colorize))
	if buf.Gaps > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Gaps", statusWarn,
			fmt.Sprintf("%d gap(s) in the segment run", buf.Gaps), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Gaps", statusOK, "none", colorize))
	}
	if buf.Pinned > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Pinned", statusInfo,
			fmt.Sprintf("%d segment(s) held by saves", buf.Pinned), colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Disk", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, diskLine(status.Disk, colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Saves", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, saveWorkerLine(status.Save, colorize))
	fmt.Fprintln(stdout, lastSaveLine(status.LastSave, colorize))
	return nil
}

func captureLine(state capture.State, colorize bool) string {
	switch state.Phase {
	case capture.PhaseRunning:
		return renderStatusLine("Capture", statusOK, fmt.Sprintf("running (pid %d)", state.Pid), colorize)
	case capture.PhasePaused:
		return renderStatusLine("Capture", statusWarn, "paused", colorize)
	case capture.PhaseUnavailable:
		detail := "unavailable"
		if state.LastExitError != "" {
			detail = fmt.Sprintf("unavailable: %s", state.LastExitError)
		}
		return renderStatusLine("Capture", statusError, detail, colorize)
	default:
		return renderStatusLine("Capture", statusWarn, "stopped", colorize)
	}
}

func diskLine(report diskguard.Report, colorize bool) string {
	message := fmt.Sprintf("%.1f GiB free", report.FreeGB())
	switch report.Status {
	case diskguard.StatusCritical:
		return renderStatusLine("Free space", statusError, message+" (critical, capture paused)", colorize)
	case diskguard.StatusLow:
		return renderStatusLine("Free space", statusWarn, message+" (low, pruning aggressively)", colorize)
	default:
		return renderStatusLine("Free space", statusOK, message, colorize)
	}
}

func saveWorkerLine(state assembler.State, colorize bool) string {
	switch {
	case state.Assembling && state.Queued:
		return renderStatusLine("Save worker", statusInfo,
			fmt.Sprintf("assembling %s (1 queued)", state.CurrentID), colorize)
	case state.Assembling:
		return renderStatusLine("Save worker", statusInfo,
			fmt.Sprintf("assembling %s", state.CurrentID), colorize)
	default:
		return renderStatusLine("Save worker", statusOK, "idle", colorize)
	}
}

func lastSaveLine(clip *catalog.Clip, colorize bool) string {
	if clip == nil {
		return renderStatusLine("Last save", statusInfo, "none yet", colorize)
	}
	switch clip.Status {
	case catalog.StatusCompleted:
		return renderStatusLine("Last save", statusOK, clip.OutputPath, colorize)
	case catalog.StatusFailed:
		detail := clip.ErrorMessage
		if detail == "" {
			detail = "failed"
		}
		return renderStatusLine("Last save", statusError, detail, colorize)
	default:
		return renderStatusLine("Last save", statusInfo, string(clip.Status), colorize)
	}
}

func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext) error {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Replay", statusWarn, "Not running (run `replay start`)", colorize))
	fmt.Fprintln(stdout)

	cfg := ctx.configValue()
	if cfg == nil {
		return nil
	}

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, result := range preflight.RunAll(cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
			if result.Fatal {
				kind = statusError
			}
		}
		fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Catalog", colorize) {
		fmt.Fprintln(stdout, line)
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		fmt.Fprintln(stdout, renderStatusLine("Catalog", statusWarn, err.Error(), colorize))
		return nil
	}
	defer store.Close()

	health, err := store.Health(cmd.Context())
	if err != nil {
		fmt.Fprintln(stdout, renderStatusLine("Catalog", statusWarn, err.Error(), colorize))
		return nil
	}
	if health.Total == 0 {
		fmt.Fprintln(stdout, "No clips saved yet")
		return nil
	}
	rows := [][]string{
		{"pending", strconv.Itoa(health.Pending)},
		{"assembling", strconv.Itoa(health.Assembling)},
		{"completed", strconv.Itoa(health.Completed)},
		{"failed", strconv.Itoa(health.Failed)},
	}
	fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
