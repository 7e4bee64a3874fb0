// Package vcstest provides an in-memory fake of vcs.VCS for unit tests
// that exercise queue, config, and engine logic without a real jj
// binary. It models just enough of jj's revision graph and bookmark
// semantics to drive the run engine's state machine.
package vcstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulsmith/jjq/internal/vcs"
)

// Rev is one revision in the fake repository graph.
type Rev struct {
	Change      vcs.ChangeID
	Commit      vcs.CommitID
	Description string
	Conflict    bool
	Tree        string // opaque tree fingerprint; equal trees compare equal
	Parents     []vcs.ChangeID
}

// Fake implements vcs.VCS over an in-memory graph. Every method holds
// mu, so calls from several goroutines are serialized.
type Fake struct {
	mu sync.Mutex

	root string

	revs      map[vcs.ChangeID]*Rev
	bookmarks map[string]vcs.ChangeID // name -> change id
	workspace map[string]workspaceEnt
	files     map[string]map[vcs.ChangeID]string // path -> rev -> contents

	seq int
}

// scoped binds a Fake to a single on-disk directory, the way a real jj
// subprocess is bound to whatever directory it's spawned in. "@" (and
// Edit's implicit target) resolve against the workspace whose path
// equals dir; an unscoped *Fake has no such directory; on it, "@"
// always fails to resolve. This mirrors real jj's cwd-scoped "@" and
// is what catches a caller that forgot to scope its adapter to the
// workspace it just built — the bug class this fake used to mask by
// tracking "the current workspace" as in-process state instead.
type scoped struct {
	*Fake
	dir string
}

// WithDir returns a VCS bound to dir. Production code must call this
// to get a workspace-correct adapter before issuing any "@"-relative
// call against a workspace other than the one f was constructed with.
func (f *Fake) WithDir(dir string) vcs.VCS {
	return &scoped{Fake: f, dir: dir}
}

func (s *scoped) WithDir(dir string) vcs.VCS {
	return &scoped{Fake: s.Fake, dir: dir}
}

// workspaceAtLocked finds the workspace rooted at dir. Callers must
// hold f.mu.
func (f *Fake) workspaceAtLocked(dir string) (*Rev, error) {
	for _, ent := range f.workspace {
		if ent.path == dir {
			return f.revs[ent.change], nil
		}
	}
	return nil, &vcs.NotFoundError{Revset: "@"}
}

// resolveScopedLocked is resolve, except "@" resolves against dir's
// workspace instead of never resolving. Callers must hold f.mu.
func (f *Fake) resolveScopedLocked(dir, revset string) (*Rev, error) {
	if revset == "@" {
		return f.workspaceAtLocked(dir)
	}
	return f.resolve(revset)
}

func (s *scoped) Describe(ctx context.Context, rev, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, rev)
	if err != nil {
		return err
	}
	r.Description = message
	r.Commit = s.nextCommitID()
	if rev == "@" {
		s.snapshotWorkingCopyAtLocked(s.dir, r.Change)
	}
	return nil
}

func (s *scoped) HasConflicts(ctx context.Context, revset string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return false, err
	}
	return r.Conflict, nil
}

func (s *scoped) TreesMatch(ctx context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ra, err := s.resolveScopedLocked(s.dir, a)
	if err != nil {
		return false, err
	}
	rb, err := s.resolveScopedLocked(s.dir, b)
	if err != nil {
		return false, err
	}
	return ra.Tree == rb.Tree, nil
}

func (s *scoped) GetCommitID(ctx context.Context, revset string) (vcs.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return "", err
	}
	return r.Commit, nil
}

func (s *scoped) GetDescription(ctx context.Context, revset string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return "", err
	}
	return r.Description, nil
}

func (s *scoped) ResolveRevset(ctx context.Context, revset string) (vcs.ChangeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return "", err
	}
	return r.Change, nil
}

func (s *scoped) ResolveRevsetFull(ctx context.Context, revset string) (vcs.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return vcs.Candidate{}, err
	}
	return vcs.Candidate{ChangeID: r.Change, CommitID: r.Commit}, nil
}

func (s *scoped) BookmarkCreate(ctx context.Context, name, revset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, revset)
	if err != nil {
		return err
	}
	s.bookmarks[name] = r.Change
	return nil
}

func (s *scoped) Edit(ctx context.Context, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resolveScopedLocked(s.dir, rev)
	if err != nil {
		return err
	}
	for name, ent := range s.workspace {
		if ent.path == s.dir {
			ent.change = r.Change
			s.workspace[name] = ent
		}
	}
	return nil
}

type workspaceEnt struct {
	path   string
	change vcs.ChangeID
}

// New returns an empty fake repository rooted at root() with the given
// filesystem root used for path bookkeeping only.
func New(root string) *Fake {
	f := &Fake{
		root:      root,
		revs:      map[vcs.ChangeID]*Rev{},
		bookmarks: map[string]vcs.ChangeID{},
		workspace: map[string]workspaceEnt{},
		files:     map[string]map[vcs.ChangeID]string{},
	}
	f.revs["root()"] = &Rev{Change: "root()", Commit: "root-commit", Tree: "root-tree"}
	return f
}

func (f *Fake) nextChangeID() vcs.ChangeID {
	f.seq++
	return vcs.ChangeID(fmt.Sprintf("c%05d", f.seq))
}

func (f *Fake) nextCommitID() vcs.CommitID {
	f.seq++
	return vcs.CommitID(fmt.Sprintf("commit-%d", f.seq))
}

// AddRev registers rev directly, for test setup (bypassing jj new/
// describe plumbing the real adapter would require).
func (f *Fake) AddRev(r Rev) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revs[r.Change] = &r
}

// SetBookmark points name at change, for test setup.
func (f *Fake) SetBookmark(name string, change vcs.ChangeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[name] = change
}

// resolve resolves revset against no particular directory: "@" never
// resolves here, since jj only knows what "@" means relative to a
// process's current directory. Use WithDir and resolveScopedLocked to
// resolve "@" against a specific workspace.
func (f *Fake) resolve(revset string) (*Rev, error) {
	if change, ok := f.bookmarks[revset]; ok {
		return f.revs[change], nil
	}
	if revset == "@" {
		return nil, &vcs.NotFoundError{Revset: revset}
	}
	if strings.HasSuffix(revset, "@") {
		name := strings.TrimSuffix(revset, "@")
		if ent, ok := f.workspace[name]; ok {
			return f.revs[ent.change], nil
		}
	}
	if strings.HasPrefix(revset, "bookmarks(exact:") && strings.HasSuffix(revset, ")") {
		name := strings.TrimSuffix(strings.TrimPrefix(revset, "bookmarks(exact:"), ")")
		return f.resolve(name)
	}
	if r, ok := f.revs[vcs.ChangeID(revset)]; ok {
		return r, nil
	}
	return nil, &vcs.NotFoundError{Revset: revset}
}

func (f *Fake) VerifyRepo(ctx context.Context) error { return nil }

func (f *Fake) RepoRoot(ctx context.Context) (string, error) { return f.root, nil }

func (f *Fake) BookmarkExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bookmarks[name]
	return ok, nil
}

func (f *Fake) BookmarkCreate(ctx context.Context, name, revset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return err
	}
	f.bookmarks[name] = r.Change
	return nil
}

func (f *Fake) BookmarkDelete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookmarks, name)
	return nil
}

func (f *Fake) BookmarkSet(ctx context.Context, name, revset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return err
	}
	f.bookmarks[name] = r.Change
	return nil
}

func (f *Fake) BookmarkListGlob(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix, suffixLen := globPrefix(pattern)
	var out []string
	for name := range f.bookmarks {
		if strings.HasPrefix(name, prefix) && len(name) == len(prefix)+suffixLen {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// globPrefix supports the one glob shape jjq uses: "prefix/??????".
func globPrefix(pattern string) (prefix string, questionMarks int) {
	idx := strings.IndexByte(pattern, '?')
	if idx < 0 {
		return pattern, 0
	}
	return pattern[:idx], strings.Count(pattern[idx:], "?")
}

func (f *Fake) ListBookmarks(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.bookmarks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) BookmarkMove(ctx context.Context, name string, from, to vcs.CommitID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	change, ok := f.bookmarks[name]
	if !ok {
		return &vcs.NotFoundError{Revset: name}
	}
	cur := f.revs[change]
	if cur.Commit != from {
		return &vcs.ToolError{Args: []string{"bookmark", "move", name}, Stderr: "bookmark moved concurrently"}
	}
	toRev, err := f.resolveCommit(to)
	if err != nil {
		return err
	}
	f.bookmarks[name] = toRev.Change
	return nil
}

func (f *Fake) resolveCommit(commit vcs.CommitID) (*Rev, error) {
	for _, r := range f.revs {
		if r.Commit == commit {
			return r, nil
		}
	}
	return nil, &vcs.NotFoundError{Revset: string(commit)}
}

func (f *Fake) ResolveRevset(ctx context.Context, revset string) (vcs.ChangeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return "", err
	}
	return r.Change, nil
}

func (f *Fake) ResolveRevsetFull(ctx context.Context, revset string) (vcs.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return vcs.Candidate{}, err
	}
	return vcs.Candidate{ChangeID: r.Change, CommitID: r.Commit}, nil
}

func (f *Fake) GetCommitID(ctx context.Context, revset string) (vcs.CommitID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return "", err
	}
	return r.Commit, nil
}

func (f *Fake) GetDescription(ctx context.Context, revset string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return "", err
	}
	return r.Description, nil
}

func (f *Fake) HasConflicts(ctx context.Context, revset string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(revset)
	if err != nil {
		return false, err
	}
	return r.Conflict, nil
}

func (f *Fake) TreesMatch(ctx context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ra, err := f.resolve(a)
	if err != nil {
		return false, err
	}
	rb, err := f.resolve(b)
	if err != nil {
		return false, err
	}
	return ra.Tree == rb.Tree, nil
}

func (f *Fake) NewRev(ctx context.Context, parents ...string) (vcs.ChangeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parentIDs []vcs.ChangeID
	var tree string
	var conflict bool
	for _, p := range parents {
		r, err := f.resolve(p)
		if err != nil {
			return "", err
		}
		parentIDs = append(parentIDs, r.Change)
		tree = r.Tree
		conflict = conflict || r.Conflict
	}
	change := f.nextChangeID()
	rev := &Rev{Change: change, Commit: f.nextCommitID(), Tree: tree, Parents: parentIDs, Conflict: conflict}
	f.revs[change] = rev
	return change, nil
}

// Describe resolves rev against no particular directory, so rev == "@"
// always fails here; callers needing to describe a workspace's working
// copy must go through WithDir, which routes to scoped.Describe below.
func (f *Fake) Describe(ctx context.Context, rev, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(rev)
	if err != nil {
		return err
	}
	r.Description = message
	r.Commit = f.nextCommitID()
	return nil
}

// snapshotWorkingCopyAtLocked approximates jj's automatic working-copy
// snapshot: it reads the handful of known metadata-branch paths
// ("last_id", "config/*") from dir's workspace on disk into the fake's
// per-revision file store, keyed by change ID (stable across the
// amend Describe performs). Callers must hold f.mu.
func (f *Fake) snapshotWorkingCopyAtLocked(dir string, change vcs.ChangeID) {
	var ent workspaceEnt
	found := false
	for _, e := range f.workspace {
		if e.path == dir {
			ent, found = e, true
			break
		}
	}
	if !found {
		return
	}
	f.snapshotFileLocked(ent.path, "last_id", change)
	configDir := filepath.Join(ent.path, "config")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f.snapshotFileLocked(ent.path, filepath.Join("config", e.Name()), change)
	}
}

func (f *Fake) snapshotFileLocked(workspacePath, relPath string, change vcs.ChangeID) {
	contents, err := os.ReadFile(filepath.Join(workspacePath, relPath))
	if err != nil {
		return
	}
	key := filepath.ToSlash(relPath)
	byRev, ok := f.files[key]
	if !ok {
		byRev = map[vcs.ChangeID]string{}
		f.files[key] = byRev
	}
	byRev[change] = string(contents)
}

func (f *Fake) Abandon(ctx context.Context, rev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(rev)
	if err != nil {
		return err
	}
	delete(f.revs, r.Change)
	return nil
}

// Edit resolves rev against no particular directory and updates no
// workspace's tracked change: without a bound directory the fake has
// no notion of "the current workspace" to move. Use WithDir, which
// routes to scoped.Edit below.
func (f *Fake) Edit(ctx context.Context, rev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.resolve(rev)
	return err
}

func (f *Fake) DuplicateOnto(ctx context.Context, revset, destination string) ([]vcs.ChangeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := f.resolve(revset)
	if err != nil {
		return nil, err
	}
	dst, err := f.resolve(destination)
	if err != nil {
		return nil, err
	}
	change := f.nextChangeID()
	f.revs[change] = &Rev{Change: change, Commit: f.nextCommitID(), Tree: src.Tree, Description: src.Description, Parents: []vcs.ChangeID{dst.Change}, Conflict: src.Conflict}
	return []vcs.ChangeID{change}, nil
}

func (f *Fake) RebaseBranchOnto(ctx context.Context, source, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := f.resolve(source)
	if err != nil {
		return err
	}
	dst, err := f.resolve(destination)
	if err != nil {
		return err
	}
	src.Parents = []vcs.ChangeID{dst.Change}
	src.Commit = f.nextCommitID()
	return nil
}

func (f *Fake) WorkspaceAdd(ctx context.Context, path, name string, parents ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var change vcs.ChangeID
	for _, p := range parents {
		r, err := f.resolve(p)
		if err != nil {
			return err
		}
		change = r.Change
	}
	if len(parents) > 1 {
		// merge workspace: synthesize a merge revision
		var tree string
		var parentIDs []vcs.ChangeID
		var conflict bool
		for _, p := range parents {
			r, _ := f.resolve(p)
			parentIDs = append(parentIDs, r.Change)
			tree = r.Tree
			conflict = conflict || r.Conflict
		}
		change = f.nextChangeID()
		f.revs[change] = &Rev{Change: change, Commit: f.nextCommitID(), Tree: tree, Parents: parentIDs, Conflict: conflict}
	}
	f.workspace[name] = workspaceEnt{path: path, change: change}
	return nil
}

func (f *Fake) WorkspaceForget(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workspace, name)
	return nil
}

func (f *Fake) WorkspaceList(ctx context.Context) ([]vcs.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vcs.Workspace
	for name, ent := range f.workspace {
		out = append(out, vcs.Workspace{Name: name, Path: ent.path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Fake) FileShow(ctx context.Context, path, rev string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.resolve(rev)
	if err != nil {
		return "", err
	}
	byRev, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("no such path %q", path)
	}
	v, ok := byRev[r.Change]
	if !ok {
		return "", fmt.Errorf("no such path %q at %s", path, rev)
	}
	return v, nil
}

// WriteFile records path's contents at rev for later FileShow calls,
// for test setup.
func (f *Fake) WriteFile(rev vcs.ChangeID, path, contents string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byRev, ok := f.files[path]
	if !ok {
		byRev = map[vcs.ChangeID]string{}
		f.files[path] = byRev
	}
	byRev[rev] = contents
}

func (f *Fake) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (f *Fake) ConfigSetRepo(ctx context.Context, key, value string) error {
	return nil
}
