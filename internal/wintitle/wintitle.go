// Package wintitle resolves the active window title at save-trigger time.
//
// The title is metadata for clip filenames, so every failure mode reports
// an empty string instead of an error: callers substitute a placeholder.
// Lookups go through xprop, which makes the whole package a best-effort
// X11 affair; Wayland and headless sessions simply get the placeholder.
package wintitle

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"replay/internal/logging"
)

const (
	xpropBinary = "xprop"

	// queryTimeout bounds both xprop calls together. The lookup sits on the
	// trigger path ahead of the save request, so it must stay snappy.
	queryTimeout = 2 * time.Second
)

// commandRunner abstracts one-shot command output capture (xprop).
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// Option configures optional provider behavior.
type Option func(*Provider)

// WithRunner replaces the command runner. Tests substitute canned output.
func WithRunner(r commandRunner) Option {
	return func(p *Provider) {
		if r != nil {
			p.runner = r
		}
	}
}

// Provider answers active window title lookups.
type Provider struct {
	runner commandRunner
	logger *slog.Logger
}

// New builds a provider that shells out to xprop.
func New(logger *slog.Logger, opts ...Option) *Provider {
	p := &Provider{
		runner: execCommandRunner{},
		logger: logging.NewComponentLogger(logger, "wintitle"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ActiveTitle returns the focused window's title, or the empty string when
// it cannot be determined.
func (p *Provider) ActiveTitle(ctx context.Context) string {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := p.runner.Output(queryCtx, xpropBinary, "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		p.logger.Debug("active window query failed", logging.Error(err))
		return ""
	}
	id, ok := parseActiveWindowID(string(out))
	if !ok {
		p.logger.Debug("no active window reported",
			logging.String("output", strings.TrimSpace(string(out))),
		)
		return ""
	}

	out, err = p.runner.Output(queryCtx, xpropBinary, "-id", id, "_NET_WM_NAME")
	if err != nil {
		p.logger.Debug("window name query failed",
			logging.String("window_id", id),
			logging.Error(err),
		)
		return ""
	}
	title, ok := parseWindowName(string(out))
	if !ok {
		return ""
	}
	return strings.TrimSpace(title)
}

// parseActiveWindowID extracts the window id from xprop -root output, e.g.
// "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3c00007". An id of 0x0 means
// no window holds focus.
func parseActiveWindowID(output string) (string, bool) {
	idx := strings.IndexByte(output, '#')
	if idx < 0 {
		return "", false
	}
	fields := strings.Fields(output[idx+1:])
	if len(fields) == 0 {
		return "", false
	}
	id := strings.TrimSuffix(fields[0], ",")
	value, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 64)
	if err != nil || value == 0 || !strings.HasPrefix(id, "0x") {
		return "", false
	}
	return id, true
}

// parseWindowName extracts the quoted title from xprop _NET_WM_NAME output,
// e.g. `_NET_WM_NAME(UTF8_STRING) = "dota2 - ranked"`. Quotes inside the
// title arrive backslash-escaped.
func parseWindowName(output string) (string, bool) {
	start := strings.IndexByte(output, '"')
	end := strings.LastIndexByte(output, '"')
	if start < 0 || end <= start {
		return "", false
	}
	title := output[start+1 : end]
	title = strings.ReplaceAll(title, `\"`, `"`)
	title = strings.ReplaceAll(title, `\\`, `\`)
	return title, strings.TrimSpace(title) != ""
}
