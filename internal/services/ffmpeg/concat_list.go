package ffmpeg

import (
	"fmt"
	"os"
	"strings"
)

// WriteConcatList writes a concat demuxer list file naming the given
// segment paths in order. Single quotes inside paths are escaped the way
// the demuxer expects.
func WriteConcatList(path string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("concat list requires at least one file")
	}
	var b strings.Builder
	for _, f := range files {
		escaped := strings.ReplaceAll(f, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}
