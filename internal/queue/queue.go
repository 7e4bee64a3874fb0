// Package queue implements jjq's bookmark-based queue namespace:
// sequence ID allocation and formatting, enumeration of queued and
// failed entries, and trailer parsing for failed-entry diagnostics.
// See spec §3 and §4.C.
package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/vcs"
)

// SeqID is a validated sequence ID in the closed range [1, 999999].
type SeqID uint32

const (
	MinSeqID = 1
	MaxSeqID = 999999
)

// ParseSeqID validates and parses a sequence ID from user input:
// ASCII digits only, no empty string, value in [1, 999999]. Padded
// forms ("000001") are accepted and equivalent.
func ParseSeqID(input string) (SeqID, error) {
	if input == "" {
		return 0, jjqerr.New(jjqerr.Usage, "invalid sequence ID: empty")
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, jjqerr.New(jjqerr.Usage, "invalid sequence ID: %q (must be numeric)", input)
		}
	}
	v, err := strconv.ParseUint(input, 10, 32)
	if err != nil {
		return 0, jjqerr.New(jjqerr.Usage, "invalid sequence ID: %s (must be 1-999999)", input)
	}
	if v < MinSeqID || v > MaxSeqID {
		return 0, jjqerr.New(jjqerr.Usage, "invalid sequence ID: %d (must be 1-999999)", v)
	}
	return SeqID(v), nil
}

// String formats id as a zero-padded six-digit string, as used in
// bookmark names.
func (id SeqID) String() string {
	return fmt.Sprintf("%06d", uint32(id))
}

const (
	queuePrefix  = "jjq/queue/"
	failedPrefix = "jjq/failed/"
)

// QueueBookmark returns the queue bookmark name for id.
func QueueBookmark(id SeqID) string { return queuePrefix + id.String() }

// FailedBookmark returns the failed bookmark name for id.
func FailedBookmark(id SeqID) string { return failedPrefix + id.String() }

var (
	queueBookmarkRe  = regexp.MustCompile(`^jjq/queue/(\d{6})$`)
	failedBookmarkRe = regexp.MustCompile(`^jjq/failed/(\d{6})$`)
)

// Sequencer allocates sequence IDs and enumerates queue/failed
// bookmarks. It shares the metadata-workspace mutation primitive with
// config.Store so the "last_id" counter and config/* files live under
// the same append-only history (spec §3's Metadata branch entity).
type Sequencer struct {
	vcs    vcs.VCS
	lock   *lock.Manager
	config *config.Store
}

func NewSequencer(v vcs.VCS, lockMgr *lock.Manager, cfg *config.Store) *Sequencer {
	return &Sequencer{vcs: v, lock: lockMgr, config: cfg}
}

// NextID allocates and returns the next sequence ID, persisting the
// new counter value to the metadata branch under the "id" lock.
func (s *Sequencer) NextID(ctx context.Context) (SeqID, error) {
	handle, err := s.lock.Acquire("id")
	if err != nil {
		return 0, jjqerr.Wrap(jjqerr.Fatal, err, "acquiring sequence ID lock")
	}
	if handle == nil {
		return 0, jjqerr.New(jjqerr.Conflict, "could not acquire sequence ID lock (another process may be pushing)")
	}
	defer handle.Close()

	if err := s.config.EnsureInitialized(ctx); err != nil {
		return 0, err
	}

	var newID SeqID
	err = s.config.MutateMeta(ctx, "jjq-id", func(dir string, v vcs.VCS) error {
		lastIDPath := filepath.Join(dir, "last_id")
		raw, readErr := os.ReadFile(lastIDPath)
		current := 0
		switch {
		case readErr == nil:
			n, parseErr := strconv.Atoi(strings.TrimSpace(string(raw)))
			if parseErr != nil {
				return jjqerr.Wrap(jjqerr.Fatal, parseErr, "corrupt last_id contents %q", string(raw))
			}
			current = n
		case os.IsNotExist(readErr):
			// No prior counter: this is the first NextID call.
		default:
			return jjqerr.Wrap(jjqerr.Fatal, readErr, "reading last_id")
		}
		if current >= MaxSeqID {
			return jjqerr.New(jjqerr.Usage, "sequence ID exhausted (at %d)", MaxSeqID)
		}
		newID = SeqID(current + 1)
		if err := os.WriteFile(lastIDPath, []byte(newID.String()), 0o644); err != nil {
			return err
		}
		return v.Describe(ctx, "@", fmt.Sprintf("%d -> %d", current, int(newID)))
	})
	if err != nil {
		return 0, err
	}
	return newID, nil
}

// GetQueue enumerates queued sequence IDs, ascending (FIFO order).
func (s *Sequencer) GetQueue(ctx context.Context) ([]SeqID, error) {
	return s.enumerate(ctx, queuePrefix+"??????", queueBookmarkRe, true)
}

// GetFailed enumerates failed sequence IDs, descending (most recent
// first, for display).
func (s *Sequencer) GetFailed(ctx context.Context) ([]SeqID, error) {
	return s.enumerate(ctx, failedPrefix+"??????", failedBookmarkRe, false)
}

func (s *Sequencer) enumerate(ctx context.Context, glob string, re *regexp.Regexp, ascending bool) ([]SeqID, error) {
	bookmarks, err := s.vcs.BookmarkListGlob(ctx, glob)
	if err != nil {
		return nil, err
	}
	var ids []SeqID
	for _, b := range bookmarks {
		m := re.FindStringSubmatch(b)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, SeqID(v))
	}
	sort.Slice(ids, func(i, j int) bool {
		if ascending {
			return ids[i] < ids[j]
		}
		return ids[i] > ids[j]
	})
	return ids, nil
}

// NextItem returns the lowest queued sequence ID, or false if empty.
func (s *Sequencer) NextItem(ctx context.Context) (SeqID, bool, error) {
	queue, err := s.GetQueue(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(queue) == 0 {
		return 0, false, nil
	}
	return queue[0], true, nil
}

// QueueItemExists reports whether id has a queue bookmark.
func (s *Sequencer) QueueItemExists(ctx context.Context, id SeqID) (bool, error) {
	return s.vcs.BookmarkExists(ctx, QueueBookmark(id))
}

// FailedItemExists reports whether id has a failed bookmark.
func (s *Sequencer) FailedItemExists(ctx context.Context, id SeqID) (bool, error) {
	return s.vcs.BookmarkExists(ctx, FailedBookmark(id))
}
