package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"replay/internal/config"
	"replay/internal/diskguard"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskHeadroom probes free space on the buffer filesystem against the
// configured critical threshold. Starting below the critical floor is fatal:
// the guard would pause capture immediately and the daemon would sit idle.
func CheckDiskHeadroom(cfg *config.Config) Result {
	const name = "Disk headroom"

	free, err := diskguard.FreeBytes(cfg.Paths.BufferDir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", cfg.Paths.BufferDir, err)}
	}
	freeGB := float64(free) / (1 << 30)
	if freeGB < cfg.Disk.CriticalGB {
		return Result{
			Name:   name,
			Fatal:  true,
			Detail: fmt.Sprintf("%.1f GB free is below the %.1f GB critical threshold", freeGB, cfg.Disk.CriticalGB),
		}
	}
	result := Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GB free", freeGB)}
	if freeGB < cfg.Disk.LowGB {
		result.Detail = fmt.Sprintf("%.1f GB free (below the %.1f GB low watermark)", freeGB, cfg.Disk.LowGB)
	}
	return result
}
