package doctor

import (
	"fmt"
	"strings"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/lock"
)

// RepoDetectedCheck verifies the current directory is inside a jj repo.
type RepoDetectedCheck struct{}

func (*RepoDetectedCheck) Name() string  { return "repo-detected" }
func (*RepoDetectedCheck) CanFix() bool  { return false }
func (*RepoDetectedCheck) Run(c *CheckContext) Result {
	if err := c.VCS.VerifyRepo(c.Ctx); err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("not inside a jj repo: %v", err)}
	}
	return Result{Status: StatusOK, Message: "current directory is inside a jj repo"}
}

// JJQInitializedCheck verifies the metadata bookmark exists.
type JJQInitializedCheck struct{}

func (*JJQInitializedCheck) Name() string { return "jjq-initialized" }
func (*JJQInitializedCheck) CanFix() bool { return false }
func (*JJQInitializedCheck) Run(c *CheckContext) Result {
	ok, err := c.Config.IsInitialized(c.Ctx)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("could not check metadata bookmark: %v", err)}
	}
	if !ok {
		return Result{Status: StatusFail, Message: "jjq is not initialized; run `jjq init`"}
	}
	return Result{Status: StatusOK, Message: "metadata bookmark " + config.JJQBookmark + " exists"}
}

// TrunkExistsCheck verifies the configured trunk bookmark resolves.
type TrunkExistsCheck struct{}

func (*TrunkExistsCheck) Name() string { return "trunk-exists" }
func (*TrunkExistsCheck) CanFix() bool { return false }
func (*TrunkExistsCheck) Run(c *CheckContext) Result {
	trunk, err := c.Config.GetTrunkBookmark(c.Ctx)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("could not read trunk config: %v", err)}
	}
	exists, err := c.VCS.BookmarkExists(c.Ctx, trunk)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("could not check trunk bookmark %q: %v", trunk, err)}
	}
	if !exists {
		return Result{Status: StatusFail, Message: fmt.Sprintf("trunk bookmark %q does not exist", trunk)}
	}
	return Result{Status: StatusOK, Message: fmt.Sprintf("trunk bookmark %q resolves", trunk)}
}

// CheckConfiguredCheck verifies check_command is set.
type CheckConfiguredCheck struct{}

func (*CheckConfiguredCheck) Name() string { return "check-configured" }
func (*CheckConfiguredCheck) CanFix() bool { return false }
func (*CheckConfiguredCheck) Run(c *CheckContext) Result {
	cmd, ok, err := c.Config.GetCheckCommand(c.Ctx)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("could not read check_command: %v", err)}
	}
	if !ok || strings.TrimSpace(cmd) == "" {
		return Result{Status: StatusWarning, Message: "no check_command configured; `run` will fail with a Conflict error"}
	}
	return Result{Status: StatusOK, Message: fmt.Sprintf("check_command set to %q", cmd)}
}

// StrategyValidCheck verifies strategy is merge or rebase.
type StrategyValidCheck struct{}

func (*StrategyValidCheck) Name() string { return "strategy-valid" }
func (*StrategyValidCheck) CanFix() bool { return false }
func (*StrategyValidCheck) Run(c *CheckContext) Result {
	strategy, err := c.Config.GetStrategy(c.Ctx)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("invalid strategy: %v", err)}
	}
	return Result{Status: StatusOK, Message: fmt.Sprintf("strategy is %q", strategy)}
}

// LogFilterConfiguredCheck reports the one-time hint state and whether
// a jj config alias filters jjq/_/_ noise from `jj log`. Cosmetic: this
// never fails, only warns.
type LogFilterConfiguredCheck struct{}

func (*LogFilterConfiguredCheck) Name() string { return "log-filter-configured" }
func (*LogFilterConfiguredCheck) CanFix() bool { return false }
func (*LogFilterConfiguredCheck) Run(c *CheckContext) Result {
	shown, err := c.Config.LogHintShown(c.Ctx)
	if err != nil {
		return Result{Status: StatusWarning, Message: fmt.Sprintf("could not read log hint state: %v", err)}
	}
	_, hasAlias, err := c.VCS.ConfigGet(c.Ctx, "revset-aliases.\"log-filter\"")
	if err != nil {
		hasAlias = false
	}
	if hasAlias {
		return Result{Status: StatusOK, Message: "a log-filter revset alias is configured"}
	}
	if shown {
		return Result{Status: StatusWarning, Message: "no log-filter alias configured, but the one-time hint has already been shown"}
	}
	return Result{Status: StatusWarning, Message: "no log-filter alias configured; `jj log` will show jjq/_/_ metadata noise"}
}

// LockStatesCheck reports the held/free state of the run/id/config
// locks. Held locks are informational, never a failure.
type LockStatesCheck struct{}

func (*LockStatesCheck) Name() string { return "lock-states" }
func (*LockStatesCheck) CanFix() bool { return false }
func (*LockStatesCheck) Run(c *CheckContext) Result {
	var held []string
	for _, name := range []string{"run", "id", "config"} {
		state, err := c.Lock.State(name)
		if err != nil {
			return Result{Status: StatusWarning, Message: fmt.Sprintf("could not probe lock %q: %v", name, err)}
		}
		if state == lock.Held {
			held = append(held, name)
		}
	}
	if len(held) == 0 {
		return Result{Status: StatusOK, Message: "no jjq locks held"}
	}
	return Result{Status: StatusWarning, Message: "locks currently held: " + strings.Join(held, ", ")}
}

// OrphanWorkspacesCheck reports workspaces on disk matching jjq's
// naming prefixes with no corresponding live queue/failed reference.
type OrphanWorkspacesCheck struct{}

func (*OrphanWorkspacesCheck) Name() string { return "orphan-workspaces" }
func (*OrphanWorkspacesCheck) CanFix() bool { return false }
func (*OrphanWorkspacesCheck) Run(c *CheckContext) Result {
	workspaces, err := c.VCS.WorkspaceList(c.Ctx)
	if err != nil {
		return Result{Status: StatusWarning, Message: fmt.Sprintf("could not list workspaces: %v", err)}
	}
	var orphans []string
	for _, ws := range workspaces {
		if !strings.HasPrefix(ws.Name, "jjq-") {
			continue
		}
		id := strings.TrimPrefix(ws.Name, "jjq-run-")
		if id == ws.Name {
			// Not a run workspace (jjq-meta-*, jjq-config-*, jjq-check-*,
			// jjq-hint-*): these are always transient within a single
			// mutation and are themselves orphans if they ever persist.
			orphans = append(orphans, ws.Name)
			continue
		}
		queued, _ := isLive(c, id)
		if !queued {
			orphans = append(orphans, ws.Name)
		}
	}
	if len(orphans) == 0 {
		return Result{Status: StatusOK, Message: "no orphaned jjq workspaces"}
	}
	return Result{Status: StatusWarning, Message: fmt.Sprintf("orphaned workspaces (run `jjq clean`): %s", strings.Join(orphans, ", "))}
}

func isLive(c *CheckContext, id string) (bool, error) {
	queueOK, err := c.VCS.BookmarkExists(c.Ctx, "jjq/queue/"+id)
	if err != nil {
		return false, err
	}
	if queueOK {
		return true, nil
	}
	failedOK, err := c.VCS.BookmarkExists(c.Ctx, "jjq/failed/"+id)
	if err != nil {
		return false, err
	}
	return failedOK, nil
}
