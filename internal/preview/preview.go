// Package preview generates clip thumbnails with goffmpeg.
package preview

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"log/slog"

	"github.com/xfrr/goffmpeg/transcoder"

	"replay/internal/logging"
)

// Generator writes a JPEG still from a finished clip. Generation is
// best-effort side work; callers log failures and move on.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator returns a thumbnail generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logging.NewComponentLogger(logger, "preview")}
}

// Generate extracts a frame from the clip midpoint and writes it next
// to the clip with a .jpg extension. It returns the thumbnail path.
func (g *Generator) Generate(clipPath string, durationSeconds float64) (string, error) {
	thumbPath := thumbnailPath(clipPath)

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(clipPath, thumbPath); err != nil {
		return "", fmt.Errorf("initialize transcoder: %w", err)
	}

	trans.MediaFile().SetSeekTime(seekTime(durationSeconds))
	trans.MediaFile().SetVideoFilter("scale=480:-2")
	trans.MediaFile().SetVideoCodec("mjpeg")
	trans.MediaFile().SetSkipAudio(true)
	trans.MediaFile().SetOutputFormat("image2")

	done := trans.Run(false)
	if err := <-done; err != nil {
		return "", fmt.Errorf("extract thumbnail frame: %w", err)
	}

	g.logger.Debug("thumbnail generated",
		logging.String("thumbnail", thumbPath),
	)
	return thumbPath, nil
}

func thumbnailPath(clipPath string) string {
	return strings.TrimSuffix(clipPath, filepath.Ext(clipPath)) + ".jpg"
}

// seekTime picks the clip midpoint so the still shows mid-action rather
// than the first GOP's fade-in.
func seekTime(durationSeconds float64) string {
	seek := durationSeconds / 2
	if seek < 0 || durationSeconds <= 0 {
		seek = 0
	}
	return strconv.FormatFloat(seek, 'f', 3, 64)
}
