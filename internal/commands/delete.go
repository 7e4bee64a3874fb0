package commands

import (
	"context"
	"os"
	"strings"

	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/queue"
)

// DeleteResult reports which namespace id was removed from.
type DeleteResult struct {
	ID   queue.SeqID
	Kind string // "queue" or "failed"
}

// Delete removes a queue or failed entry, reclaiming its workspace
// directory if one was recorded, per spec §4.F's delete contract.
func (c *Commands) Delete(ctx context.Context, id queue.SeqID) (*DeleteResult, error) {
	inQueue, err := c.Queue.QueueItemExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if inQueue {
		if err := c.VCS.BookmarkDelete(ctx, queue.QueueBookmark(id)); err != nil {
			return nil, jjqerr.Wrap(jjqerr.Fatal, err, "deleting queue entry")
		}
		return &DeleteResult{ID: id, Kind: "queue"}, nil
	}

	inFailed, err := c.Queue.FailedItemExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inFailed {
		return nil, jjqerr.New(jjqerr.Usage, "no such queue or failed item: %s", id)
	}

	wsPath, _ := c.workspacePathFor(ctx, id)

	if err := c.VCS.BookmarkDelete(ctx, queue.FailedBookmark(id)); err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "deleting failed entry")
	}

	wsName := "jjq-run-" + id.String()
	_ = c.VCS.WorkspaceForget(ctx, wsName) // ignore "no such workspace"
	_ = c.Config.ForgetWorkspace(ctx, id.String())

	if wsPath != "" {
		if _, err := os.Stat(wsPath); err == nil {
			_ = os.RemoveAll(wsPath)
		}
	}

	return &DeleteResult{ID: id, Kind: "failed"}, nil
}

// workspacePathFor resolves id's recorded workspace path, preferring
// the dedicated metadata file and falling back to a scan of metadata
// commit descriptions for a "Sequence-Id: N" + "Workspace: <path>"
// pair left by older jjq versions (spec §4.F delete contract).
func (c *Commands) workspacePathFor(ctx context.Context, id queue.SeqID) (string, error) {
	if path, ok, err := c.Config.WorkspacePath(ctx, id.String()); err == nil && ok {
		return path, nil
	}
	return scanMetadataForWorkspace(ctx, c, id)
}

// scanMetadataForWorkspace is the fallback path: it walks the metadata
// bookmark's own change description (the only place older jjq
// revisions recorded workspace bookkeeping before the dedicated
// workspace/NNNNNN file existed).
func scanMetadataForWorkspace(ctx context.Context, c *Commands, id queue.SeqID) (string, error) {
	desc, err := c.VCS.GetDescription(ctx, "jjq/_/_")
	if err != nil {
		return "", err
	}
	var seqLine, wsLine string
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Sequence-Id:") && strings.TrimSpace(strings.TrimPrefix(line, "Sequence-Id:")) == id.String() {
			seqLine = line
		}
		if strings.HasPrefix(line, "Workspace:") {
			wsLine = strings.TrimSpace(strings.TrimPrefix(line, "Workspace:"))
		}
	}
	if seqLine == "" || wsLine == "" {
		return "", nil
	}
	return wsLine, nil
}
