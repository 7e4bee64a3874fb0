// Package logging provides jjq's ambient structured-logging channel,
// wired through github.com/joeycumines/logiface and the
// github.com/joeycumines/stumpy JSON backend. It is a diagnostic
// channel parallel to the direct "jjq: <message>" stderr output the
// CLI layer prints to the user (see SPEC_FULL.md §7) — silent by
// default, enabled by setting JJQ_LOG to a level name.
package logging

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// EnvVar is the environment variable that selects the log level.
// Unset or unrecognised values disable logging entirely.
const EnvVar = "JJQ_LOG"

var (
	once   sync.Once
	logger *logiface.Logger[*stumpy.Event]
)

func levelFromEnv() logiface.Level {
	switch os.Getenv(EnvVar) {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "info":
		return logiface.LevelInformational
	case "warn", "warning":
		return logiface.LevelWarning
	case "error", "err":
		return logiface.LevelError
	default:
		return logiface.LevelDisabled
	}
}

// L returns the process-wide logger, initialising it on first use from
// the JJQ_LOG environment variable.
func L() *logiface.Logger[*stumpy.Event] {
	once.Do(func() {
		logger = stumpy.L.New(
			stumpy.L.WithStumpy(),
			stumpy.L.WithLevel(levelFromEnv()),
		)
	})
	return logger
}

// RunID mints a logging-only correlation value for one run-engine
// invocation. It never appears in bookmark names, trailers, or any
// persisted state (SPEC_FULL.md §4.F "Correlation IDs").
func RunID() string {
	return uuid.NewString()
}
