// Package lock implements named advisory file locks under
// <repo_root>/.jj/jjq-locks/<name>.lock, used to serialize the run
// engine, sequence ID allocation, and config writes across concurrent
// jjq invocations.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// State is the observed state of a named lock.
type State int

const (
	Free State = iota
	Held
)

func (s State) String() string {
	if s == Held {
		return "held"
	}
	return "free"
}

// Manager creates and probes named locks rooted at a repo's .jj
// directory.
type Manager struct {
	locksDir string
}

// NewManager returns a Manager rooted at repoRoot/.jj/jjq-locks.
func NewManager(repoRoot string) *Manager {
	return &Manager{locksDir: filepath.Join(repoRoot, ".jj", "jjq-locks")}
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.locksDir, name+".lock")
}

// Handle owns an acquired lock; releasing it (via Close or Release)
// releases the underlying OS lock.
type Handle struct {
	flock *flock.Flock
}

// Acquire attempts to take an exclusive, non-blocking lock named name.
// It returns (nil, nil) if another process already holds it; any other
// error is returned as-is.
func (m *Manager) Acquire(name string) (*Handle, error) {
	if err := os.MkdirAll(m.locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(m.path(name))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Handle{flock: fl}, nil
}

// AcquireOrFail acquires name or returns an error carrying message.
func (m *Manager) AcquireOrFail(name, message string) (*Handle, error) {
	h, err := m.Acquire(name)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%s", message)
	}
	return h, nil
}

// State probes whether name is currently held, by attempting and
// immediately releasing a non-blocking lock.
func (m *Manager) State(name string) (State, error) {
	if _, err := os.Stat(m.locksDir); os.IsNotExist(err) {
		return Free, nil
	}
	fl := flock.New(m.path(name))
	ok, err := fl.TryLock()
	if err != nil {
		return Free, fmt.Errorf("probing lock %q: %w", name, err)
	}
	if !ok {
		return Held, nil
	}
	_ = fl.Unlock()
	return Free, nil
}

// IsHeld is a boolean shortcut over State.
func (m *Manager) IsHeld(name string) (bool, error) {
	s, err := m.State(name)
	if err != nil {
		return false, err
	}
	return s == Held, nil
}

// Release releases h. Safe to call multiple times.
func (h *Handle) Release() error {
	if h == nil || h.flock == nil {
		return nil
	}
	return h.flock.Unlock()
}

// Close implements io.Closer so callers can `defer handle.Close()`.
func (h *Handle) Close() error { return h.Release() }
