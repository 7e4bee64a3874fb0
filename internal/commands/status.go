package commands

import (
	"context"
	"strings"

	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/queue"
)

// QueueRecord is one queued item as rendered by status.
type QueueRecord struct {
	ID          queue.SeqID `json:"id"`
	ChangeID    string      `json:"change_id"`
	CommitID    string      `json:"commit_id"`
	Description string      `json:"description"`
}

// FailedRecord is one failed item as rendered by status, its fields
// drawn from the failed commit's trailers (spec §6's JSON schema).
type FailedRecord struct {
	ID                queue.SeqID `json:"id"`
	CandidateChangeID string      `json:"candidate_change_id"`
	CandidateCommitID string      `json:"candidate_commit_id"`
	Description       string      `json:"description"`
	TrunkCommitID     string      `json:"trunk_commit_id"`
	WorkspacePath     string      `json:"workspace_path"`
	FailureReason     string      `json:"failure_reason"`
}

// StatusAll is the "status" (no id) response shape.
type StatusAll struct {
	Running bool           `json:"running"`
	Queue   []QueueRecord  `json:"queue"`
	Failed  []FailedRecord `json:"failed"`
}

// firstLine returns the first line of a commit description, the
// convention used throughout status for the one-line summary column.
func firstLine(desc string) string {
	line, _, _ := strings.Cut(desc, "\n")
	return strings.TrimSpace(line)
}

// StatusAll builds the full queue/failed snapshot.
func (c *Commands) StatusAll(ctx context.Context) (*StatusAll, error) {
	running, err := c.Lock.IsHeld("run")
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "probing run lock")
	}

	queuedIDs, err := c.Queue.GetQueue(ctx)
	if err != nil {
		return nil, err
	}
	queueRecords := make([]QueueRecord, 0, len(queuedIDs))
	for _, id := range queuedIDs {
		rec, err := c.queueRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		queueRecords = append(queueRecords, *rec)
	}

	failedIDs, err := c.Queue.GetFailed(ctx)
	if err != nil {
		return nil, err
	}
	failedRecords := make([]FailedRecord, 0, len(failedIDs))
	for _, id := range failedIDs {
		rec, err := c.failedRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		failedRecords = append(failedRecords, *rec)
	}

	return &StatusAll{Running: running, Queue: queueRecords, Failed: failedRecords}, nil
}

func (c *Commands) queueRecord(ctx context.Context, id queue.SeqID) (*QueueRecord, error) {
	candidate, err := c.VCS.ResolveRevsetFull(ctx, queue.QueueBookmark(id))
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "resolving queue entry")
	}
	desc, err := c.VCS.GetDescription(ctx, queue.QueueBookmark(id))
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "reading queue entry description")
	}
	return &QueueRecord{
		ID:          id,
		ChangeID:    string(candidate.ChangeID),
		CommitID:    string(candidate.CommitID),
		Description: firstLine(desc),
	}, nil
}

func (c *Commands) failedRecord(ctx context.Context, id queue.SeqID) (*FailedRecord, error) {
	desc, err := c.VCS.GetDescription(ctx, queue.FailedBookmark(id))
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "reading failed entry description")
	}
	trailers, missing := queue.ParseTrailersStrict(desc)
	if len(missing) > 0 {
		return nil, jjqerr.New(jjqerr.Fatal, "failed entry %s missing trailers: %v", id, missing)
	}
	return &FailedRecord{
		ID:                id,
		CandidateChangeID: trailers[queue.TrailerCandidate],
		CandidateCommitID: trailers[queue.TrailerCandidateCommit],
		Description:       firstLine(desc),
		TrunkCommitID:     trailers[queue.TrailerTrunk],
		WorkspacePath:     trailers[queue.TrailerWorkspace],
		FailureReason:     trailers[queue.TrailerFailure],
	}, nil
}

// StatusByID resolves a single item, queue or failed, by sequence ID.
func (c *Commands) StatusByID(ctx context.Context, id queue.SeqID) (*QueueRecord, *FailedRecord, error) {
	inQueue, err := c.Queue.QueueItemExists(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if inQueue {
		rec, err := c.queueRecord(ctx, id)
		return rec, nil, err
	}
	inFailed, err := c.Queue.FailedItemExists(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if inFailed {
		rec, err := c.failedRecord(ctx, id)
		return nil, rec, err
	}
	return nil, nil, jjqerr.New(jjqerr.Usage, "no such queue or failed item: %s", id)
}

// StatusByChangeID resolves a single item, queue or failed, by
// candidate change ID (spec §6's `status --resolve <change-id>`).
func (c *Commands) StatusByChangeID(ctx context.Context, changeID string) (*QueueRecord, *FailedRecord, error) {
	queuedIDs, err := c.Queue.GetQueue(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range queuedIDs {
		rec, err := c.queueRecord(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if rec.ChangeID == changeID {
			return rec, nil, nil
		}
	}
	failedIDs, err := c.Queue.GetFailed(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range failedIDs {
		rec, err := c.failedRecord(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if rec.CandidateChangeID == changeID {
			return nil, rec, nil
		}
	}
	return nil, nil, jjqerr.New(jjqerr.Usage, "no queue or failed item with change ID %s", changeID)
}
