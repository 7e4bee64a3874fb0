// Package cli implements jjq's command-line surface: a spf13/cobra
// command tree over the internal/commands, internal/engine, and
// internal/doctor packages. See SPEC_FULL.md's CLI section.
package cli

import (
	"context"

	"github.com/paulsmith/jjq/internal/commands"
	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/doctor"
	"github.com/paulsmith/jjq/internal/engine"
	"github.com/paulsmith/jjq/internal/jjqerr"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/queue"
	"github.com/paulsmith/jjq/internal/vcs"
)

// app bundles every collaborator a subcommand needs, built fresh for
// each invocation against the repo containing the process's working
// directory.
type app struct {
	VCS      vcs.VCS
	Lock     *lock.Manager
	Config   *config.Store
	Queue    *queue.Sequencer
	Commands *commands.Commands
	Engine   *engine.Engine
	Doctor   *doctor.Doctor
	RepoRoot string
}

// newApp verifies the current directory is inside a jj repo and wires
// up the full collaborator graph rooted there. Every subcommand except
// quickstart calls this first thing.
func newApp(ctx context.Context) (*app, error) {
	probe := vcs.New("")
	if err := probe.VerifyRepo(ctx); err != nil {
		return nil, jjqerr.Wrap(jjqerr.Usage, err, "not inside a jj repository")
	}
	root, err := probe.RepoRoot(ctx)
	if err != nil {
		return nil, jjqerr.Wrap(jjqerr.Fatal, err, "resolving repository root")
	}

	v := vcs.New(root)
	lockMgr := lock.NewManager(root)
	cfg := config.NewStore(v, lockMgr, root)
	q := queue.NewSequencer(v, lockMgr, cfg)

	cmds := &commands.Commands{VCS: v, Lock: lockMgr, Config: cfg, Queue: q, RepoRoot: root}
	eng := &engine.Engine{VCS: v, Lock: lockMgr, Config: cfg, Queue: q, RepoRoot: root}

	return &app{
		VCS:      v,
		Lock:     lockMgr,
		Config:   cfg,
		Queue:    q,
		Commands: cmds,
		Engine:   eng,
		Doctor:   doctor.New(),
		RepoRoot: root,
	}, nil
}

func (a *app) checkContext(ctx context.Context) *doctor.CheckContext {
	return &doctor.CheckContext{
		Ctx:      ctx,
		VCS:      a.VCS,
		Lock:     a.Lock,
		Config:   a.Config,
		RepoRoot: a.RepoRoot,
	}
}
