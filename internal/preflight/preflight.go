package preflight

import (
	"replay/internal/config"
	"replay/internal/deps"
)

// Result reports the outcome of a single preflight check. Fatal results
// prevent the daemon from starting; the rest degrade features.
type Result struct {
	Name   string
	Passed bool
	Fatal  bool
	Detail string
}

// RunAll executes the daemon's readiness checks: directory access for
// the buffer, clips, and log trees, binary availability, and a disk
// headroom probe on the buffer filesystem.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	buffer := CheckDirectoryAccess("Buffer directory", cfg.Paths.BufferDir)
	buffer.Fatal = !buffer.Passed
	results = append(results, buffer)

	log := CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)
	log.Fatal = !log.Passed
	results = append(results, log)

	// A missing clips directory only blocks saves, not buffering; the
	// assembler reports it loudly when a save actually fails.
	results = append(results, CheckDirectoryAccess("Clips directory", cfg.Paths.ClipsDir))

	for _, status := range deps.Check(cfg) {
		result := Result{
			Name:   status.Name,
			Passed: status.Available,
			Fatal:  !status.Available && !status.Optional,
			Detail: status.Detail,
		}
		if result.Passed {
			result.Detail = status.Command
		}
		results = append(results, result)
	}

	results = append(results, CheckDiskHeadroom(cfg))

	return results
}

// FatalFailure returns the first failed fatal result, if any.
func FatalFailure(results []Result) (Result, bool) {
	for _, result := range results {
		if result.Fatal && !result.Passed {
			return result, true
		}
	}
	return Result{}, false
}
