package engine

import (
	"context"
	"fmt"

	"github.com/paulsmith/jjq/internal/jjqerr"
)

// Summary tallies the outcomes of a `run --all` invocation.
type Summary struct {
	Merged  int
	Failed  int
	Skipped int
}

// RunAll processes queue items until empty (or until the first
// failure, if stopOnFailure is set), per spec §4.F's "run --all"
// contract.
func (e *Engine) RunAll(ctx context.Context, stopOnFailure bool) (Summary, error) {
	var summary Summary
	for {
		result, err := e.RunOne(ctx)
		if err != nil {
			// Lock contention, missing config, or a fatal error: prior
			// tallies stand, but nothing further can be attempted.
			return summary, err
		}
		switch result.Outcome {
		case Empty:
			return summary, nil
		case Success:
			summary.Merged++
		case SkippedEmpty:
			summary.Skipped++
		case FailureConflict, FailureCheck, FailureTrunkMoved:
			summary.Failed++
			if stopOnFailure {
				total := summary.Merged + summary.Failed + summary.Skipped
				return summary, jjqerr.New(jjqerr.Conflict, "processed %d item(s) before failure", total)
			}
		}
	}
}

// FinalError turns a completed (non-stop-on-failure) Summary into the
// appropriate process-boundary error: PartialFailure if at least one
// success and one failure occurred, Conflict if items failed and none
// landed, nil otherwise.
func (s Summary) FinalError() error {
	if s.Failed > 0 && s.Merged > 0 {
		return jjqerr.New(jjqerr.PartialFailure, "processed %d item(s), %d failed", s.Merged, s.Failed)
	}
	if s.Failed > 0 && s.Merged == 0 {
		return jjqerr.New(jjqerr.Conflict, "processed %d item(s), %d failed", s.Merged, s.Failed)
	}
	return nil
}

// String renders a human summary line.
func (s Summary) String() string {
	return fmt.Sprintf("merged %d, failed %d, skipped %d", s.Merged, s.Failed, s.Skipped)
}
