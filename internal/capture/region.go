package capture

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	fallbackWidth  = 1920
	fallbackHeight = 1080
)

// detectRegion resolves the capture geometry when the configuration leaves
// width and height at zero. It asks xrandr for the primary display and
// falls back to 1920x1080 when the query fails (headless test boxes,
// non-X11 platforms).
func detectRegion(ctx context.Context, runner commandRunner) (int, int, bool) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := runner.Output(queryCtx, "xrandr", "--query")
	if err != nil {
		return fallbackWidth, fallbackHeight, false
	}
	if w, h, ok := parseXrandrGeometry(string(output)); ok {
		return w, h, true
	}
	return fallbackWidth, fallbackHeight, false
}

// parseXrandrGeometry extracts the primary monitor mode from xrandr --query
// output, e.g. "DP-2 connected primary 2560x1440+0+0 ...". When no primary
// is flagged it falls back to the screen line's "current W x H".
func parseXrandrGeometry(output string) (int, int, bool) {
	var currentW, currentH int
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Contains(line, " connected primary ") {
			for _, field := range strings.Fields(line) {
				if w, h, ok := parseModeField(field); ok {
					return w, h, true
				}
			}
		}
		if strings.HasPrefix(line, "Screen ") {
			if idx := strings.Index(line, "current "); idx >= 0 {
				rest := line[idx+len("current "):]
				rest = strings.TrimSuffix(strings.SplitN(rest, ",", 2)[0], " ")
				parts := strings.Split(rest, " x ")
				if len(parts) == 2 {
					w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
					h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
					if errW == nil && errH == nil && w > 0 && h > 0 {
						currentW, currentH = w, h
					}
				}
			}
		}
	}
	if currentW > 0 && currentH > 0 {
		return currentW, currentH, true
	}
	return 0, 0, false
}

// parseModeField matches "2560x1440+0+0" style mode fields.
func parseModeField(field string) (int, int, bool) {
	plus := strings.IndexByte(field, '+')
	if plus < 0 {
		return 0, 0, false
	}
	mode := field[:plus]
	parts := strings.Split(mode, "x")
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
