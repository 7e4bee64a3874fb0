// Package vcs provides a typed abstraction over the jj (Jujutsu) binary.
//
// jjq never shells out to jj from any other package; every invocation
// funnels through the VCS interface defined here, so the run engine,
// queue state, and config store can all be tested against a fake.
package vcs

import "context"

// ChangeID is a stable revision identifier that survives amend/rebase.
type ChangeID string

// CommitID is the content hash of a revision; it changes on every amend.
type CommitID string

// Candidate pairs the two identities jjq always tracks for a queued
// revision.
type Candidate struct {
	ChangeID ChangeID
	CommitID CommitID
}

// VCS abstracts the jj operations the jjq core depends on. All methods
// accept a context so long-running jj invocations (duplicate, rebase)
// can be cancelled along with the rest of a command.
type VCS interface {
	// WithDir returns an adapter scoped to dir for every subsequent
	// call, used to make "@" resolve inside a specific workspace: jj
	// resolves "@" against the process's current directory, not any
	// state tracked by this package, so a revset-resolving call made
	// against a workspace other than the one the shared adapter was
	// constructed with must go through WithDir.
	WithDir(dir string) VCS

	// VerifyRepo confirms the current directory is inside a jj repo.
	VerifyRepo(ctx context.Context) error
	// RepoRoot returns the repository root path.
	RepoRoot(ctx context.Context) (string, error)

	// BookmarkExists reports whether name currently exists.
	BookmarkExists(ctx context.Context, name string) (bool, error)
	// BookmarkCreate creates name at revset.
	BookmarkCreate(ctx context.Context, name, revset string) error
	// BookmarkDelete deletes name.
	BookmarkDelete(ctx context.Context, name string) error
	// BookmarkSet unconditionally re-points name at revset, with no
	// compare-and-swap. Used only for metadata-branch housekeeping,
	// never for trunk advancement (which must use BookmarkMove).
	BookmarkSet(ctx context.Context, name, revset string) error
	// BookmarkListGlob lists bookmark names matching a glob pattern.
	BookmarkListGlob(ctx context.Context, pattern string) ([]string, error)
	// BookmarkMove moves name from from to to, failing if name is not
	// currently at from (compare-and-swap).
	BookmarkMove(ctx context.Context, name string, from, to CommitID) error
	// ListBookmarks lists every local bookmark name.
	ListBookmarks(ctx context.Context) ([]string, error)

	// ResolveRevset resolves revset to a single change ID, failing on
	// an empty or ambiguous result.
	ResolveRevset(ctx context.Context, revset string) (ChangeID, error)
	// ResolveRevsetFull resolves revset to both identities.
	ResolveRevsetFull(ctx context.Context, revset string) (Candidate, error)
	// GetCommitID returns the commit ID of revset.
	GetCommitID(ctx context.Context, revset string) (CommitID, error)
	// GetDescription returns the full description of revset.
	GetDescription(ctx context.Context, revset string) (string, error)
	// HasConflicts reports whether revset has conflicts.
	HasConflicts(ctx context.Context, revset string) (bool, error)
	// TreesMatch reports whether a and b have identical trees.
	TreesMatch(ctx context.Context, a, b string) (bool, error)

	// NewRev creates a new revision with the given parents (--no-edit)
	// and returns its change ID.
	NewRev(ctx context.Context, parents ...string) (ChangeID, error)
	// Describe sets rev's description.
	Describe(ctx context.Context, rev, message string) error
	// Abandon discards rev.
	Abandon(ctx context.Context, rev string) error
	// Edit makes rev the working-copy commit of the current workspace.
	Edit(ctx context.Context, rev string) error

	// DuplicateOnto duplicates the chain destination..revset onto
	// destination, returning the new change IDs in order (last is the
	// tip duplicate).
	DuplicateOnto(ctx context.Context, revset, destination string) ([]ChangeID, error)
	// RebaseBranchOnto rebases source and its chain up to destination
	// onto destination.
	RebaseBranchOnto(ctx context.Context, source, destination string) error

	// WorkspaceAdd creates a workspace at path named name, rooted at
	// parents.
	WorkspaceAdd(ctx context.Context, path, name string, parents ...string) error
	// WorkspaceForget forgets workspace name, transparently retrying
	// once via `workspace update-stale` on a stale error.
	WorkspaceForget(ctx context.Context, name string) error
	// WorkspaceList lists all workspaces.
	WorkspaceList(ctx context.Context) ([]Workspace, error)

	// FileShow returns the contents of path at rev.
	FileShow(ctx context.Context, path, rev string) (string, error)

	// ConfigGet reads a jj config value.
	ConfigGet(ctx context.Context, key string) (string, bool, error)
	// ConfigSetRepo writes a jj config value at repo scope.
	ConfigSetRepo(ctx context.Context, key, value string) error
}

// Workspace describes one entry of `jj workspace list`.
type Workspace struct {
	Name string
	Path string
}
