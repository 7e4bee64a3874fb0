package checkexec

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/paulsmith/jjq/internal/jjqerr"
)

// Executor runs a check command in a disposable workspace directory
// and tees its output to a pre-resolved log file, per spec §4.E.
type Executor struct {
	// Command is the shell command to run, e.g. "go test ./...".
	Command string
	// LogPath is resolved before any chdir, so the log always lives in
	// the main repo's .jj directory regardless of workspace lifetime.
	LogPath string
	// Verbose, when true, starts the interactive progress surface
	// already streaming the log instead of waiting for the 'v' toggle.
	Verbose bool
}

// waitResult carries the outcome of the child process back to
// whichever progress surface is driving the wait.
type waitResult struct {
	exitCode int
	err      error
}

// Run executes the check command to completion, truncating and
// populating LogPath, and returns the child's exit code. A non-nil
// error indicates the executor itself failed (spawn, log I/O), not
// that the check failed — a non-zero exitCode with a nil error is a
// normal check failure.
func (e *Executor) Run(ctx context.Context) (int, error) {
	if err := os.MkdirAll(parentDir(e.LogPath), 0o755); err != nil {
		return 0, jjqerr.Wrap(jjqerr.Fatal, err, "creating log directory")
	}
	logFile, err := os.Create(e.LogPath)
	if err != nil {
		return 0, jjqerr.Wrap(jjqerr.Fatal, err, "creating log file")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", e.Command+" 2>&1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = logFile.Close()
		return 0, jjqerr.Wrap(jjqerr.Fatal, err, "wiring check command output")
	}
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return 0, jjqerr.Wrap(jjqerr.Fatal, err, "spawning check command")
	}

	readerDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			// No per-line Sync: the write is already visible to a
			// concurrent `jjq tail -f` reader via the shared page
			// cache without an fsync round-trip; only Close below
			// needs to guarantee durability.
			if _, err := fmt.Fprintln(logFile, scanner.Text()); err != nil {
				readerDone <- err
				return
			}
		}
		readerDone <- scanner.Err()
	}()

	start := time.Now()
	doneCh := make(chan waitResult, 1)
	go func() {
		waitErr := cmd.Wait()
		code := cmd.ProcessState.ExitCode()
		doneCh <- waitResult{exitCode: code, err: waitErrToNil(waitErr)}
	}()

	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	var result waitResult
	if interactive {
		result = runInteractive(e.LogPath, e.Verbose, start, doneCh)
	} else {
		result = runHeartbeat(start, doneCh)
	}

	if readErr := <-readerDone; readErr != nil && result.err == nil {
		result.err = readErr
	}
	if err := logFile.Close(); err != nil {
		return result.exitCode, jjqerr.Wrap(jjqerr.Fatal, err, "closing log file")
	}
	if result.err != nil {
		return result.exitCode, jjqerr.Wrap(jjqerr.Fatal, result.err, "running check command")
	}

	if err := appendSentinel(e.LogPath, result.exitCode); err != nil {
		return result.exitCode, jjqerr.Wrap(jjqerr.Fatal, err, "writing sentinel line")
	}
	return result.exitCode, nil
}

func waitErrToNil(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		// A non-zero exit is not an executor-level error.
		return nil
	}
	return err
}

func appendSentinel(logPath string, exitCode int) error {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, SentinelLine(exitCode))
	return err
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}

// runHeartbeat is the non-TTY progress surface: one line every 15
// seconds on stderr, per spec §4.E.3.
func runHeartbeat(start time.Time, doneCh <-chan waitResult) waitResult {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case r := <-doneCh:
			return r
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "jjq: still running... (elapsed: %ds)\n", int(time.Since(start).Seconds()))
		}
	}
}

// runInteractive drives the bubbletea spinner/log-toggle progress
// surface. bubbletea guarantees terminal-state restoration on every
// exit path, including SIGINT, which is the Go-idiomatic replacement
// for a hand-rolled raw-mode RAII guard.
func runInteractive(logPath string, startVerbose bool, start time.Time, doneCh chan waitResult) waitResult {
	m := newProgressModel(logPath, startVerbose, start, doneCh)
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return <-doneCh
	}
	pm, ok := final.(progressModel)
	if !ok || pm.result == nil {
		return <-doneCh
	}
	return *pm.result
}
