// Package doctor implements jjq's diagnostics: a registry of
// independent Check implementations, each reporting OK/Warning/Fail
// against the current repository. Modeled directly on the teacher's
// internal/doctor Check pattern (Name/CanFix/Run(*CheckContext)
// Result). See SPEC_FULL.md's "doctor" section.
package doctor

import (
	"context"

	"github.com/paulsmith/jjq/internal/config"
	"github.com/paulsmith/jjq/internal/lock"
	"github.com/paulsmith/jjq/internal/vcs"
)

// Status is a check's outcome.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result is one check's outcome.
type Result struct {
	Status  Status
	Message string
}

// CheckContext carries the collaborators a check needs. It is built
// once per `jjq doctor` invocation and handed to every registered
// Check.
type CheckContext struct {
	Ctx      context.Context
	VCS      vcs.VCS
	Lock     *lock.Manager
	Config   *config.Store
	RepoRoot string
}

// Check is one independent diagnostic.
type Check interface {
	// Name is the check's stable identifier, as printed by `jjq doctor`.
	Name() string
	// CanFix reports whether this check can attempt an automatic
	// remedy. None of jjq's checks currently do; all are report-only.
	CanFix() bool
	// Run executes the check against ctx.
	Run(ctx *CheckContext) Result
}

// Doctor runs a registered set of checks in order.
type Doctor struct {
	checks []Check
}

// New returns a Doctor with every standard jjq check registered, in
// the order spec.md §6 lists them.
func New() *Doctor {
	d := &Doctor{}
	d.RegisterAll(
		&RepoDetectedCheck{},
		&JJQInitializedCheck{},
		&TrunkExistsCheck{},
		&CheckConfiguredCheck{},
		&StrategyValidCheck{},
		&LogFilterConfiguredCheck{},
		&LockStatesCheck{},
		&OrphanWorkspacesCheck{},
	)
	return d
}

func (d *Doctor) Register(c Check) {
	d.checks = append(d.checks, c)
}

func (d *Doctor) RegisterAll(cs ...Check) {
	d.checks = append(d.checks, cs...)
}

// Checks returns the registered checks, in registration order.
func (d *Doctor) Checks() []Check {
	return d.checks
}

// Report is one check's name paired with its result, for rendering.
type Report struct {
	Name   string
	CanFix bool
	Result Result
}

// Run executes every registered check against ctx and returns their
// reports in registration order. A check is never skipped because an
// earlier one failed; doctor is diagnostic, not gating.
func (d *Doctor) Run(ctx *CheckContext) []Report {
	reports := make([]Report, 0, len(d.checks))
	for _, c := range d.checks {
		reports = append(reports, Report{
			Name:   c.Name(),
			CanFix: c.CanFix(),
			Result: c.Run(ctx),
		})
	}
	return reports
}

// WorstStatus returns the most severe status across reports, OK if
// reports is empty.
func WorstStatus(reports []Report) Status {
	worst := StatusOK
	for _, r := range reports {
		if r.Result.Status > worst {
			worst = r.Result.Status
		}
	}
	return worst
}
