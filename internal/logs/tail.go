package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Structured log lines can carry long error chains, so the scanner allows
// up to a mebibyte per line.
const (
	scanInitial = 64 * 1024
	scanMax     = 1024 * 1024

	pollEvery = 250 * time.Millisecond
)

// TailRequest selects a slice of the log file. A negative Cursor asks for
// the last Lines lines; any other value resumes at that byte offset, which
// is how follow mode picks up where the previous call stopped.
type TailRequest struct {
	Cursor int64
	Lines  int
	Wait   time.Duration
}

// TailResult carries the matched lines and the cursor for the next call.
type TailResult struct {
	Lines  []string
	Cursor int64
}

// Tail reads the requested log slice. A missing file is an empty result,
// not an error: the daemon may not have logged anything yet. When Wait is
// positive and no new lines exist, Tail polls until lines appear, the wait
// expires, or ctx is done.
func Tail(ctx context.Context, path string, req TailRequest) (TailResult, error) {
	result := TailResult{Cursor: req.Cursor}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Cursor = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if req.Cursor < 0 {
		lines, cursor, err := lastLines(path, req.Lines)
		if err != nil {
			return result, err
		}
		result.Lines = lines
		result.Cursor = cursor
	} else {
		cursor := req.Cursor
		if cursor > info.Size() {
			// The file was truncated or replaced; skip to its current end.
			cursor = info.Size()
		}
		lines, next, err := readForward(path, cursor)
		if err != nil {
			return result, err
		}
		result.Lines = lines
		result.Cursor = next
	}

	if req.Wait > 0 && len(result.Lines) == 0 {
		return await(ctx, path, result.Cursor, req.Wait)
	}
	return result, nil
}

// lastLines scans the file keeping a ring of the trailing limit lines, and
// reports the end-of-file cursor alongside them.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanInitial), scanMax)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(next+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// readForward returns the lines from cursor to end of file and the cursor
// for the next call.
func readForward(path string, cursor int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(cursor, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanInitial), scanMax)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	next, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log cursor: %w", err)
	}
	return lines, next, nil
}

// await polls for new lines until some arrive, the wait expires, or ctx is
// cancelled. This is the server half of follow mode: one bounded poll per
// request keeps the IPC surface plain request and response.
func await(ctx context.Context, path string, cursor int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	result := TailResult{Cursor: cursor}
	for {
		lines, next, err := readForward(path, cursor)
		if err != nil {
			return result, err
		}
		if len(lines) > 0 {
			result.Lines = lines
			result.Cursor = next
			return result, nil
		}
		result.Cursor = next

		if !time.Now().Before(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
