// Package checkexec runs the configured check command against a
// candidate's workspace, tees its combined output to the run log, and
// renders progress to the operator while it waits. See spec §4.E.
package checkexec

import (
	"path/filepath"
	"strconv"
	"strings"
)

// SentinelPrefix marks the final line appended to the run log once the
// check command has exited.
const SentinelPrefix = "--- jjq: run complete"

// SentinelLine renders the sentinel line for exitCode.
func SentinelLine(exitCode int) string {
	return SentinelPrefix + " (exit " + strconv.Itoa(exitCode) + ") ---"
}

// IsSentinel reports whether line is a sentinel line.
func IsSentinel(line string) bool {
	return strings.HasPrefix(line, SentinelPrefix)
}

// LogPath returns the run log path for repoRoot, resolved before any
// chdir into a workspace so tailers always find it at a stable
// location regardless of workspace lifetime.
func LogPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".jj", "jjq-run.log")
}
