// Package commands implements jjq's push/status/delete/clean/tail
// surface: the non-engine operations described in spec §4.F (push,
// delete) and §4.G (status), plus the interface-level clean and tail
// commands from §6. See SPEC_FULL.md §4.G.
package commands

import (
	"context"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/queue"
	"github.com/paulsmith/jjq/internal/vcs"
)

// Commands bundles the core collaborators push/status/delete/clean/tail
// need.
type Commands struct {
	VCS      vcs.VCS
	Lock     *lock.Manager
	Config   *config.Store
	Queue    *queue.Sequencer
	RepoRoot string
}

// PushResult reports what Push did, for the CLI layer to render.
type PushResult struct {
	ID       queue.SeqID
	Replaced *queue.SeqID // a stale queue entry for the same change ID was replaced
	Cleared  *queue.SeqID // a failed entry for the same change ID was cleared
}

// Push enqueues revset per spec §4.F's push contract: idempotency over
// existing entries, a pre-flight conflict check, then sequence ID
// allocation and queue-bookmark creation.
func (c *Commands) Push(ctx context.Context, revset string) (*PushResult, error) {
	candidate, err := c.VCS.ResolveRevsetFull(ctx, revset)
	if err != nil {
		if vcs.IsNotFound(err) {
			return nil, jjqerr.Wrap(jjqerr.Usage, err, "revset %q did not resolve", revset)
		}
		if vcs.IsAmbiguous(err) {
			return nil, jjqerr.Wrap(jjqerr.Usage, err, "revset %q is ambiguous", revset)
		}
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "resolving revset")
	}

	trunk, err := c.Config.GetTrunkBookmark(ctx)
	if err != nil {
		return nil, err
	}
	trunkExists, err := c.VCS.BookmarkExists(ctx, trunk)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "checking trunk bookmark")
	}
	if !trunkExists {
		return nil, jjqerr.New(jjqerr.Usage, "trunk bookmark %q does not exist", trunk)
	}

	initialized, err := c.Config.IsInitialized(ctx)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, jjqerr.New(jjqerr.Usage, "jjq is not initialized; run `jjq init`")
	}

	result := &PushResult{}

	queued, err := c.Queue.GetQueue(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range queued {
		existing, err := c.VCS.ResolveRevsetFull(ctx, queue.QueueBookmark(id))
		if err != nil {
			continue
		}
		if existing.CommitID == candidate.CommitID {
			return nil, jjqerr.New(jjqerr.Conflict, "already queued at %s", id)
		}
	}

	// Conflict-check and initialization are verified above, before any
	// stale entry is touched, so a rejected push never destroys a
	// still-valid queue/failed entry for the same change ID.
	if err := c.preflightConflictCheck(ctx, trunk, revset); err != nil {
		return nil, err
	}

	for _, id := range queued {
		existing, err := c.VCS.ResolveRevsetFull(ctx, queue.QueueBookmark(id))
		if err != nil {
			continue
		}
		if existing.ChangeID == candidate.ChangeID {
			if err := c.VCS.BookmarkDelete(ctx, queue.QueueBookmark(id)); err != nil {
				return nil, jjqerr.Wrap(jjqerr.Fatal, err, "replacing stale queue entry")
			}
			replaced := id
			result.Replaced = &replaced
		}
	}

	failed, err := c.Queue.GetFailed(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range failed {
		desc, err := c.VCS.GetDescription(ctx, queue.FailedBookmark(id))
		if err != nil {
			continue
		}
		trailers := queue.ParseTrailers(desc)
		if trailers[queue.TrailerCandidate] == string(candidate.ChangeID) {
			if err := c.VCS.BookmarkDelete(ctx, queue.FailedBookmark(id)); err != nil {
				return nil, jjqerr.Wrap(jjqerr.Fatal, err, "clearing failed entry")
			}
			cleared := id
			result.Cleared = &cleared
		}
	}

	id, err := c.Queue.NextID(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.VCS.BookmarkCreate(ctx, queue.QueueBookmark(id), revset); err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "creating queue entry")
	}
	result.ID = id
	return result, nil
}

// preflightConflictCheck builds an ephemeral headless merge commit of
// trunk and revset to test for conflicts before the candidate is ever
// queued, always abandoning the ephemeral commit afterwards — even if
// the conflict predicate itself errors (spec §7's one of two local
// recovery points).
func (c *Commands) preflightConflictCheck(ctx context.Context, trunk, revset string) error {
	ephemeral, err := c.VCS.NewRev(ctx, trunk, revset)
	if err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "building pre-flight merge commit")
	}
	defer func() { _ = c.VCS.Abandon(ctx, string(ephemeral)) }()

	conflict, err := c.VCS.HasConflicts(ctx, string(ephemeral))
	if err != nil {
		return jjqerr.Wrap(jjqerr.Fatal, err, "checking for conflicts")
	}
	if conflict {
		return jjqerr.New(jjqerr.Conflict, "candidate %q conflicts with trunk %q; rebase and re-push", revset, trunk)
	}
	return nil
}
