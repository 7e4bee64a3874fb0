package commands

import (
	"context"
	"os"
	"strings"

	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/queue"
)

// CleanResult reports what Clean reclaimed.
type CleanResult struct {
	ForgottenWorkspaces []string
	RemovedDirectories  []string
}

// Clean forgets every jj workspace under jjq's "jjq-run-NNNNNN" naming
// convention whose sequence ID is no longer live in the queue or
// failed namespace, removing its recorded directory too, per
// SPEC_FULL.md §6 "clean". Bookkeeping workspaces (jjq-meta-*,
// jjq-config-*, jjq-hint-*) are always transient within a single
// MutateMeta call and are never left behind for clean to find; if one
// does survive a crash, it is forgotten here as well since its
// directory cannot still be in use.
func (c *Commands) Clean(ctx context.Context) (*CleanResult, error) {
	result := &CleanResult{}

	queued, err := c.Queue.GetQueue(ctx)
	if err != nil {
		return result, err
	}
	failed, err := c.Queue.GetFailed(ctx)
	if err != nil {
		return result, err
	}
	live := make(map[string]bool, len(queued)+len(failed))
	for _, id := range queued {
		live[id.String()] = true
	}
	for _, id := range failed {
		live[id.String()] = true
	}

	workspaces, err := c.VCS.WorkspaceList(ctx)
	if err != nil {
		return result, jjqerr.Wrap(jjqerr.Fatal, err, "listing workspaces")
	}
	for _, ws := range workspaces {
		if id, ok := runWorkspaceID(ws.Name); ok {
			if live[id] {
				continue
			}
			if err := c.VCS.WorkspaceForget(ctx, ws.Name); err != nil {
				return result, jjqerr.Wrap(jjqerr.Fatal, err, "forgetting orphaned workspace %s", ws.Name)
			}
			result.ForgottenWorkspaces = append(result.ForgottenWorkspaces, ws.Name)

			if path, ok, err := c.Config.WorkspacePath(ctx, id); err == nil && ok && path != "" {
				if _, statErr := os.Stat(path); statErr == nil {
					_ = os.RemoveAll(path)
					result.RemovedDirectories = append(result.RemovedDirectories, path)
				}
			}
			_ = c.Config.ForgetWorkspace(ctx, id)
			continue
		}

		if isBookkeepingWorkspace(ws.Name) {
			if err := c.VCS.WorkspaceForget(ctx, ws.Name); err != nil {
				return result, jjqerr.Wrap(jjqerr.Fatal, err, "forgetting orphaned workspace %s", ws.Name)
			}
			result.ForgottenWorkspaces = append(result.ForgottenWorkspaces, ws.Name)
			if _, statErr := os.Stat(ws.Path); statErr == nil {
				_ = os.RemoveAll(ws.Path)
				result.RemovedDirectories = append(result.RemovedDirectories, ws.Path)
			}
		}
	}

	return result, nil
}

// runWorkspaceID extracts the sequence ID suffix from a "jjq-run-NNNNNN"
// workspace name.
func runWorkspaceID(name string) (string, bool) {
	const prefix = "jjq-run-"
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, prefix)
	if _, err := queue.ParseSeqID(id); err != nil {
		return "", false
	}
	return id, true
}

// bookkeepingWorkspacePrefixes lists the config.Store.MutateMeta
// workspace names (see spec §4.D) plus `jjq check`'s jjq-check
// workspace: each is single-use within one operation and
// unconditionally forgettable by clean if one survives a
// crash, since it carries no sequence ID and is never "live" in the
// queue/failed sense runWorkspaceID checks.
var bookkeepingWorkspacePrefixes = []string{"jjq-config-", "jjq-meta-", "jjq-check-", "jjq-hint-", "jjq-id-"}

func isBookkeepingWorkspace(name string) bool {
	for _, prefix := range bookkeepingWorkspacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
