package capture

import (
	"context"
	"errors"
	"testing"
)

type stubRunner struct {
	out string
	err error
}

func (r stubRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return []byte(r.out), r.err
}

const xrandrPrimary = `Screen 0: minimum 320 x 200, current 4480 x 1440, maximum 16384 x 16384
DP-2 connected primary 2560x1440+0+0 (normal left inverted right x axis y axis) 597mm x 336mm
   2560x1440     59.95*+
HDMI-1 connected 1920x1080+2560+360 (normal left inverted right x axis y axis) 509mm x 286mm
   1920x1080     60.00*+
`

const xrandrNoPrimary = `Screen 0: minimum 320 x 200, current 1920 x 1080, maximum 16384 x 16384
HDMI-1 connected 1920x1080+0+0 (normal left inverted right x axis y axis) 509mm x 286mm
`

func TestParseXrandrGeometry(t *testing.T) {
	tests := []struct {
		name   string
		output string
		wantW  int
		wantH  int
		wantOK bool
	}{
		{name: "primary monitor wins", output: xrandrPrimary, wantW: 2560, wantH: 1440, wantOK: true},
		{name: "screen current fallback", output: xrandrNoPrimary, wantW: 1920, wantH: 1080, wantOK: true},
		{name: "garbage", output: "no displays here\n", wantW: 0, wantH: 0, wantOK: false},
		{name: "empty", output: "", wantW: 0, wantH: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := parseXrandrGeometry(tt.output)
			if w != tt.wantW || h != tt.wantH || ok != tt.wantOK {
				t.Fatalf("parseXrandrGeometry() = (%d, %d, %v), want (%d, %d, %v)",
					w, h, ok, tt.wantW, tt.wantH, tt.wantOK)
			}
		})
	}
}

func TestDetectRegionParsesXrandr(t *testing.T) {
	w, h, ok := detectRegion(context.Background(), stubRunner{out: xrandrPrimary})
	if !ok || w != 2560 || h != 1440 {
		t.Fatalf("detectRegion() = (%d, %d, %v), want (2560, 1440, true)", w, h, ok)
	}
}

func TestDetectRegionFallsBackWhenXrandrFails(t *testing.T) {
	w, h, ok := detectRegion(context.Background(), stubRunner{err: errors.New("exec: xrandr: not found")})
	if ok || w != fallbackWidth || h != fallbackHeight {
		t.Fatalf("detectRegion() = (%d, %d, %v), want fallback (%d, %d, false)",
			w, h, ok, fallbackWidth, fallbackHeight)
	}
}
