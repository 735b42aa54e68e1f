// Package fileutil provides filesystem helpers for finished clips.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Finalize moves a finished temp file to its final path. Rename is
// atomic on one filesystem; a cross-device move stages the copy next to
// the final path and renames it into place, so a partial copy never
// sits under the final name.
func Finalize(tempPath, finalPath string) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			return moveAcrossDevices(tempPath, finalPath)
		}
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func moveAcrossDevices(sourcePath, finalPath string) error {
	staging := finalPath + ".part"
	if err := copyFileContents(sourcePath, staging); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Rename(staging, finalPath); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("rename staged copy: %w", err)
	}
	if err := os.Remove(sourcePath); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyFileContents(sourcePath, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// UniquePath returns path unchanged when nothing exists there, otherwise
// the first "name (N).ext" variant that is free.
func UniquePath(path string) (string, error) {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(ext)]

	candidate := path
	counter := 1
	for {
		info, err := os.Stat(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", fmt.Errorf("stat candidate path: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("target %q already exists as directory", candidate)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, counter, ext))
		counter++
	}
}
