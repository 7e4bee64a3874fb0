package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// JJ implements VCS by shelling out to the jj binary.
type JJ struct {
	dir string // working directory for every invocation; "" means inherit

	allowProtectedOnce sync.Once
	allowProtected     bool
}

// New returns a JJ adapter that runs commands in dir (empty for the
// current working directory).
func New(dir string) *JJ {
	return &JJ{dir: dir}
}

// WithDir returns a copy of j that runs commands in dir instead. Used
// by the run engine and the metadata-mutation primitive to scope an
// adapter to a freshly built workspace directory, so a revset like "@"
// resolves against that workspace instead of whichever directory j was
// originally constructed with.
func (j *JJ) WithDir(dir string) VCS {
	return &JJ{dir: dir, allowProtected: j.allowProtected}
}

func (j *JJ) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	full := append([]string{"--color=never"}, args...)
	cmd := exec.CommandContext(ctx, "jj", full...)
	if j.dir != "" {
		cmd.Dir = j.dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// runOK runs args and fails (as a *ToolError) on non-zero exit.
func (j *JJ) runOK(ctx context.Context, args ...string) (string, error) {
	stdout, stderr, err := j.run(ctx, args...)
	if err != nil {
		return "", &ToolError{Args: args, Stderr: strings.TrimSpace(string(stderr))}
	}
	return string(stdout), nil
}

// runQuiet runs args for effect only.
func (j *JJ) runQuiet(ctx context.Context, args ...string) error {
	_, err := j.runOK(ctx, args...)
	return err
}

func (j *JJ) VerifyRepo(ctx context.Context) error {
	if _, _, err := j.run(ctx, "root"); err != nil {
		return fmt.Errorf("not in a jj repository")
	}
	return nil
}

func (j *JJ) RepoRoot(ctx context.Context) (string, error) {
	out, err := j.runOK(ctx, "root")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (j *JJ) BookmarkExists(ctx context.Context, name string) (bool, error) {
	out, err := j.runOK(ctx, "bookmark", "list", "-r", fmt.Sprintf("bookmarks(exact:%s)", name), "-T", "name")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (j *JJ) BookmarkCreate(ctx context.Context, name, revset string) error {
	return j.runQuiet(ctx, "bookmark", "create", "-r", revset, name)
}

func (j *JJ) BookmarkDelete(ctx context.Context, name string) error {
	return j.runQuiet(ctx, "bookmark", "delete", name)
}

func (j *JJ) BookmarkSet(ctx context.Context, name, revset string) error {
	return j.runQuiet(ctx, "bookmark", "set", "-r", revset, name)
}

func (j *JJ) BookmarkListGlob(ctx context.Context, pattern string) ([]string, error) {
	out, err := j.runOK(ctx, "bookmark", "list", "-r",
		fmt.Sprintf("bookmarks(glob:%q)", pattern), "-T", `name ++ "\n"`)
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func (j *JJ) ListBookmarks(ctx context.Context) ([]string, error) {
	out, err := j.runOK(ctx, "bookmark", "list", "-T", `name ++ "\n"`)
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// supportsAllowProtected detects once per adapter whether the
// installed jj binary understands --allow-protected on `bookmark move`.
func (j *JJ) supportsAllowProtected(ctx context.Context) bool {
	j.allowProtectedOnce.Do(func() {
		stdout, _, err := j.run(ctx, "bookmark", "move", "-h")
		if err != nil {
			return
		}
		j.allowProtected = strings.Contains(string(stdout), "allow-protected")
	})
	return j.allowProtected
}

func (j *JJ) BookmarkMove(ctx context.Context, name string, from, to CommitID) error {
	args := []string{"bookmark", "move"}
	if j.supportsAllowProtected(ctx) {
		args = append(args, "--allow-protected")
	}
	args = append(args, "--from", string(from), "--to", string(to), name)
	return j.runQuiet(ctx, args...)
}

func (j *JJ) ResolveRevset(ctx context.Context, revset string) (ChangeID, error) {
	cand, err := j.ResolveRevsetFull(ctx, revset)
	if err != nil {
		return "", err
	}
	return cand.ChangeID, nil
}

func (j *JJ) ResolveRevsetFull(ctx context.Context, revset string) (Candidate, error) {
	out, _, err := j.run(ctx, "log", "-r", revset, "--no-graph", "-T", `change_id.short() ++ " " ++ commit_id`)
	if err != nil {
		return Candidate{}, &NotFoundError{Revset: revset}
	}
	line := strings.TrimSpace(string(out))
	if line == "" {
		return Candidate{}, &NotFoundError{Revset: revset}
	}
	if strings.Contains(line, "\n") {
		return Candidate{}, &AmbiguousRevsetError{Revset: revset}
	}
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return Candidate{}, &ProtocolError{Op: "resolve_revset_full", Output: line}
	}
	return Candidate{ChangeID: ChangeID(parts[0]), CommitID: CommitID(parts[1])}, nil
}

func (j *JJ) GetCommitID(ctx context.Context, revset string) (CommitID, error) {
	out, err := j.runOK(ctx, "log", "-r", revset, "--no-graph", "-T", "commit_id")
	if err != nil {
		return "", err
	}
	return CommitID(strings.TrimSpace(out)), nil
}

func (j *JJ) GetDescription(ctx context.Context, revset string) (string, error) {
	return j.runOK(ctx, "log", "-r", revset, "--no-graph", "-T", "description")
}

func (j *JJ) HasConflicts(ctx context.Context, revset string) (bool, error) {
	out, err := j.runOK(ctx, "log", "-r", revset, "--no-graph", "-T", `if(conflict, "yes")`)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (j *JJ) TreesMatch(ctx context.Context, a, b string) (bool, error) {
	out, err := j.runOK(ctx, "diff", "--summary", "--from", a, "--to", b)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

var createdCommitRe = regexp.MustCompile(`^Created new commit (\S+)`)

func (j *JJ) NewRev(ctx context.Context, parents ...string) (ChangeID, error) {
	args := []string{"new", "--no-edit"}
	for _, p := range parents {
		args = append(args, "-r", p)
	}
	_, stderr, err := j.run(ctx, args...)
	if err != nil {
		return "", &ToolError{Args: args, Stderr: strings.TrimSpace(string(stderr))}
	}
	for _, line := range strings.Split(string(stderr), "\n") {
		if m := createdCommitRe.FindStringSubmatch(line); m != nil {
			return ChangeID(m[1]), nil
		}
	}
	return "", &ProtocolError{Op: "new_rev", Output: string(stderr)}
}

func (j *JJ) Describe(ctx context.Context, rev, message string) error {
	return j.runQuiet(ctx, "desc", "-r", rev, "-m", message)
}

func (j *JJ) Abandon(ctx context.Context, rev string) error {
	return j.runQuiet(ctx, "abandon", rev)
}

func (j *JJ) Edit(ctx context.Context, rev string) error {
	return j.runQuiet(ctx, "edit", rev)
}

var duplicatedRe = regexp.MustCompile(`^Duplicated \S+ as (\S+)`)

func (j *JJ) DuplicateOnto(ctx context.Context, revset, destination string) ([]ChangeID, error) {
	rng := fmt.Sprintf("%s..%s", destination, revset)
	_, stderr, err := j.run(ctx, "duplicate", rng, "--onto", destination)
	if err != nil {
		return nil, &ToolError{Args: []string{"duplicate", rng, "--onto", destination}, Stderr: strings.TrimSpace(string(stderr))}
	}
	var ids []ChangeID
	for _, line := range strings.Split(string(stderr), "\n") {
		if m := duplicatedRe.FindStringSubmatch(line); m != nil {
			ids = append(ids, ChangeID(m[1]))
		}
	}
	if len(ids) == 0 {
		return nil, &ProtocolError{Op: "duplicate_onto", Output: string(stderr)}
	}
	return ids, nil
}

func (j *JJ) RebaseBranchOnto(ctx context.Context, source, destination string) error {
	return j.runQuiet(ctx, "rebase", "-b", source, "-d", destination)
}

func (j *JJ) WorkspaceAdd(ctx context.Context, path, name string, parents ...string) error {
	args := []string{"workspace", "add"}
	for _, p := range parents {
		args = append(args, "-r", p)
	}
	args = append(args, "--name", name, path)
	return j.runQuiet(ctx, args...)
}

func (j *JJ) WorkspaceForget(ctx context.Context, name string) error {
	_, stderr, err := j.run(ctx, "workspace", "forget", name)
	if err == nil {
		return nil
	}
	if strings.Contains(string(stderr), "stale") {
		_, _, _ = j.run(ctx, "workspace", "update-stale")
		return j.runQuiet(ctx, "workspace", "forget", name)
	}
	return &ToolError{Args: []string{"workspace", "forget", name}, Stderr: strings.TrimSpace(string(stderr))}
}

func (j *JJ) WorkspaceList(ctx context.Context) ([]Workspace, error) {
	out, err := j.runOK(ctx, "workspace", "list")
	if err != nil {
		return nil, err
	}
	var workspaces []Workspace
	for _, line := range nonEmptyLines(out) {
		// jj prints "<name>: <path>@<rev> <description>"
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		path := strings.TrimSpace(rest)
		if idx := strings.IndexByte(path, ' '); idx >= 0 {
			path = path[:idx]
		}
		workspaces = append(workspaces, Workspace{Name: strings.TrimSpace(name), Path: path})
	}
	return workspaces, nil
}

func (j *JJ) FileShow(ctx context.Context, path, rev string) (string, error) {
	return j.runOK(ctx, "file", "show", path, "-r", rev)
}

func (j *JJ) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	out, _, err := j.run(ctx, "config", "get", key)
	if err != nil {
		return "", false, nil
	}
	return strings.TrimSpace(string(out)), true, nil
}

func (j *JJ) ConfigSetRepo(ctx context.Context, key, value string) error {
	return j.runQuiet(ctx, "config", "set", "--repo", key, value)
}
