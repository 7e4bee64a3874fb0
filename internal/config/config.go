// Package config manages jjq's persistent configuration and the
// metadata branch it lives on (see spec §3's "Metadata branch" and
// §4.D). It also owns the metadata-workspace mutation primitive that
// internal/queue reuses for sequence ID allocation, keeping invariant
// I7 ("the metadata branch is only mutated through a short-lived
// dedicated workspace that is discarded on every mutation") enforced
// in exactly one place.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/vcs"
)

// JJQBookmark is the canonical metadata bookmark name.
const JJQBookmark = "jjq/_/_"

// Strategy is the landing algorithm for a successful candidate.
type Strategy string

const (
	StrategyMerge  Strategy = "merge"
	StrategyRebase Strategy = "rebase"
)

func (s Strategy) Valid() bool {
	return s == StrategyMerge || s == StrategyRebase
}

const (
	KeyTrunkBookmark = "trunk_bookmark"
	KeyCheckCommand  = "check_command"
	KeyStrategy      = "strategy"

	DefaultTrunkBookmark = "main"
	// DefaultStrategy applies to newly initialized repos; repos
	// initialized before the rebase strategy existed keep "merge" as
	// their effective default, recorded explicitly at init time.
	DefaultStrategy = StrategyRebase
)

// ValidKeys lists the config keys Set will accept.
var ValidKeys = []string{KeyTrunkBookmark, KeyCheckCommand, KeyStrategy}

func isValidKey(key string) bool {
	for _, k := range ValidKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Store reads and writes typed config values on the metadata branch.
type Store struct {
	vcs  vcs.VCS
	lock *lock.Manager
	root string
}

func NewStore(v vcs.VCS, lockMgr *lock.Manager, repoRoot string) *Store {
	return &Store{vcs: v, lock: lockMgr, root: repoRoot}
}

// IsInitialized reports whether the metadata bookmark exists.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	return s.vcs.BookmarkExists(ctx, JJQBookmark)
}

// EnsureInitialized creates the metadata branch at root() seeding
// last_id=0, if it does not already exist. It refuses (no-ops) if
// already initialized, matching spec §4.D's "Initialisation" contract.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	initialized, err := s.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}

	changeID, err := s.vcs.NewRev(ctx, "root()")
	if err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "creating metadata branch revision")
	}
	if err := s.vcs.BookmarkCreate(ctx, JJQBookmark, string(changeID)); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "creating metadata bookmark")
	}

	return s.MutateMeta(ctx, "jjq-meta", func(dir string, v vcs.VCS) error {
		if err := os.WriteFile(filepath.Join(dir, "last_id"), []byte("0"), 0o644); err != nil {
			return err
		}
		return v.Describe(ctx, "@", "init jjq")
	})
}

// Init is the same as EnsureInitialized but returns a Usage error if
// jjq is already initialized, matching the `jjq init` command's
// explicit "refuses if already initialized" contract (spec §6).
func (s *Store) Init(ctx context.Context, trunk, checkCommand string, strategy Strategy) error {
	initialized, err := s.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return jjqerr.New(jjqerr.Usage, "jjq is already initialized")
	}
	if !strategy.Valid() {
		return jjqerr.New(jjqerr.Usage, "invalid strategy %q (must be merge or rebase)", strategy)
	}
	if err := s.EnsureInitialized(ctx); err != nil {
		return err
	}
	if trunk != "" {
		if err := s.Set(ctx, KeyTrunkBookmark, trunk); err != nil {
			return err
		}
	}
	if checkCommand != "" {
		if err := s.Set(ctx, KeyCheckCommand, checkCommand); err != nil {
			return err
		}
	}
	return s.Set(ctx, KeyStrategy, string(strategy))
}

// Get reads a raw config value from the metadata branch.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.vcs.FileShow(ctx, "config/"+key, JJQBookmark)
	if err != nil {
		return "", false, nil
	}
	return trimTrailingNewline(value), true, nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// GetOrDefault reads key, falling back to def if unset.
func (s *Store) GetOrDefault(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *Store) GetTrunkBookmark(ctx context.Context) (string, error) {
	return s.GetOrDefault(ctx, KeyTrunkBookmark, DefaultTrunkBookmark)
}

// GetCheckCommand returns the configured check command, and false if
// unset.
func (s *Store) GetCheckCommand(ctx context.Context) (string, bool, error) {
	return s.Get(ctx, KeyCheckCommand)
}

func (s *Store) GetStrategy(ctx context.Context) (Strategy, error) {
	// An unset strategy means a repo initialized before the key existed.
	v, err := s.GetOrDefault(ctx, KeyStrategy, string(StrategyMerge))
	if err != nil {
		return "", err
	}
	strategy := Strategy(v)
	if !strategy.Valid() {
		return "", jjqerr.New(jjqerr.Fatal, "metadata branch holds invalid strategy %q", v)
	}
	return strategy, nil
}

// Set validates and writes a config value, serialized under the
// "config" lock and mutated through a dedicated jjq-config-PID
// workspace.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !isValidKey(key) {
		return jjqerr.New(jjqerr.Usage, "unknown config key: %s (valid keys: %v)", key, ValidKeys)
	}
	if key == KeyStrategy && !Strategy(value).Valid() {
		return jjqerr.New(jjqerr.Usage, "invalid strategy %q (must be merge or rebase)", value)
	}

	handle, err := s.lock.AcquireOrFail("config", "could not acquire config lock (another process is writing config)")
	if err != nil {
		return jjqerr.Wrap(jjqerr.Conflict, err, "config lock unavailable")
	}
	defer handle.Close()

	if err := s.EnsureInitialized(ctx); err != nil {
		return err
	}

	return s.MutateMeta(ctx, "jjq-config", func(dir string, v vcs.VCS) error {
		configDir := filepath.Join(dir, "config")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(configDir, key), []byte(value), 0o644); err != nil {
			return err
		}
		return v.Describe(ctx, "@", fmt.Sprintf("config: set %s", key))
	})
}

// RecordWorkspace persists the on-disk path of the workspace built for
// sequence id under "workspace/NNNNNN" on the metadata branch, so a
// later delete or clean can reclaim it even across process restarts
// (spec §3 "Workspace" entity, §4.F.4).
func (s *Store) RecordWorkspace(ctx context.Context, id string, path string) error {
	return s.MutateMeta(ctx, "jjq-meta", func(dir string, v vcs.VCS) error {
		wsDir := filepath.Join(dir, "workspace")
		if err := os.MkdirAll(wsDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(wsDir, id), []byte(path), 0o644); err != nil {
			return err
		}
		return v.Describe(ctx, "@", fmt.Sprintf("record workspace for %s", id))
	})
}

// WorkspacePath reads the recorded workspace path for sequence id, if
// any.
func (s *Store) WorkspacePath(ctx context.Context, id string) (string, bool, error) {
	v, err := s.vcs.FileShow(ctx, "workspace/"+id, JJQBookmark)
	if err != nil {
		return "", false, nil
	}
	return trimTrailingNewline(v), true, nil
}

// ForgetWorkspace removes the recorded workspace path for sequence id
// from the metadata branch, once its directory has been reclaimed.
func (s *Store) ForgetWorkspace(ctx context.Context, id string) error {
	return s.MutateMeta(ctx, "jjq-meta", func(dir string, v vcs.VCS) error {
		path := filepath.Join(dir, "workspace", id)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		return v.Describe(ctx, "@", fmt.Sprintf("forget workspace for %s", id))
	})
}

// logHintFile is the single sentinel file recording that the one-time
// "filter jjq/_/_ noise from jj log" hint has already been shown.
const logHintFile = "log_hint_shown"

// LogHintShown reports whether the one-time log-filter hint has
// already been shown to the operator.
func (s *Store) LogHintShown(ctx context.Context) (bool, error) {
	_, ok, err := func() (string, bool, error) {
		v, err := s.vcs.FileShow(ctx, logHintFile, JJQBookmark)
		if err != nil {
			return "", false, nil
		}
		return v, true, nil
	}()
	return ok, err
}

// MarkLogHintShown records that the one-time log-filter hint has been
// shown, so future invocations don't repeat it.
func (s *Store) MarkLogHintShown(ctx context.Context) error {
	handle, err := s.lock.AcquireOrFail("config", "could not acquire config lock")
	if err != nil {
		return jjqerr.Wrap(jjqerr.Conflict, err, "config lock unavailable")
	}
	defer handle.Close()
	return s.MutateMeta(ctx, "jjq-hint", func(dir string, v vcs.VCS) error {
		if err := os.WriteFile(filepath.Join(dir, logHintFile), []byte("1"), 0o644); err != nil {
			return err
		}
		return v.Describe(ctx, "@", "mark log hint shown")
	})
}

// MutateMeta builds a fresh, single-writer workspace rooted at the
// metadata bookmark named "<prefix>-<pid>", changes into it, runs fn
// with an adapter scoped to that workspace (so fn's "@" means the
// workspace MutateMeta just built, not whatever the shared adapter was
// constructed with), describes/re-points the metadata bookmark, then
// forgets the workspace unconditionally — satisfying invariant I7 and
// I8 (no two workspaces of the same name exist simultaneously: the PID
// suffix guarantees uniqueness across concurrent processes).
func (s *Store) MutateMeta(ctx context.Context, prefix string, fn func(dir string, v vcs.VCS) error) error {
	tmpDir, err := os.MkdirTemp("", prefix+"-")
	if err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "creating metadata workspace directory")
	}
	defer os.RemoveAll(tmpDir)

	wsName := fmt.Sprintf("%s-%d", prefix, os.Getpid())
	if err := s.vcs.WorkspaceAdd(ctx, tmpDir, wsName, JJQBookmark); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "creating metadata workspace")
	}
	wsVCS := s.vcs.WithDir(tmpDir)

	origDir, err := os.Getwd()
	if err != nil {
		_ = s.vcs.WorkspaceForget(ctx, wsName)
		return jjqerr.Wrap(jjqerr.Fatal, err, "reading working directory")
	}
	if err := os.Chdir(tmpDir); err != nil {
		_ = s.vcs.WorkspaceForget(ctx, wsName)
		return jjqerr.Wrap(jjqerr.Fatal, err, "entering metadata workspace")
	}

	fnErr := fn(tmpDir, wsVCS)

	if err := os.Chdir(origDir); err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "restoring working directory")
	}
	if fnErr != nil {
		_ = s.vcs.WorkspaceForget(ctx, wsName)
		return fnErr
	}

	if err := s.vcs.BookmarkSet(ctx, JJQBookmark, wsName+"@"); err != nil {
		_ = s.vcs.WorkspaceForget(ctx, wsName)
		return jjqerr.Wrap(jjqerr.Fatal, err, "re-pointing metadata bookmark")
	}

	return s.vcs.WorkspaceForget(ctx, wsName)
}
