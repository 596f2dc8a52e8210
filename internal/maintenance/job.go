// Package maintenance implements the periodic advisory scan the teacher's
// janitor tool ran against the Emergent graph, adapted to this domain:
// instead of scanning for stale spec-graph issues, it scans agent workload
// and the delegation backlog (spec.md §4.2.5, §4.5) and logs warnings an
// operator can act on. It never mutates state — purely advisory, mirroring
// spec.md §4.5's "rebalance is advisory" rule.
package maintenance

import (
	"context"
	"log/slog"

	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Job is the scheduler.Job implementation registered by cmd/contextmcp/main.go
// when config.Maintenance.Enabled is true.
type Job struct {
	store  *repository.Store
	logger *slog.Logger
}

// New builds a maintenance scan job over store.
func New(store *repository.Store, logger *slog.Logger) *Job {
	return &Job{store: store, logger: logger}
}

func (j *Job) Name() string { return "advisory-scan" }

// Run performs one advisory pass: flag agents at or near capacity, and
// report the size of the unprocessed delegation queue per target level.
// Errors from individual repository calls are logged and skipped rather
// than aborting the whole scan, since this job is best-effort.
func (j *Job) Run(ctx context.Context) error {
	j.scanAgentWorkload(ctx)
	j.scanDelegationBacklog(ctx)
	return nil
}

func (j *Job) scanAgentWorkload(ctx context.Context) {
	projects, err := j.store.Projects.List(ctx)
	if err != nil {
		j.logger.Warn("maintenance: listing projects failed", "error", err)
		return
	}

	for _, p := range projects {
		agents, err := j.store.Agents.ListByProject(ctx, p.ID)
		if err != nil {
			j.logger.Warn("maintenance: listing agents failed", "project_id", p.ID, "error", err)
			continue
		}
		for _, a := range agents {
			if a.MaxConcurrentTasks <= 0 {
				continue
			}
			load := float64(a.CurrentWorkload) / float64(a.MaxConcurrentTasks)
			switch {
			case load >= 1.0:
				j.logger.Warn("maintenance: agent at capacity",
					"agent_id", a.ID, "project_id", p.ID,
					"current_workload", a.CurrentWorkload, "max_concurrent_tasks", a.MaxConcurrentTasks)
			case load >= 0.8:
				j.logger.Info("maintenance: agent near capacity",
					"agent_id", a.ID, "project_id", p.ID,
					"current_workload", a.CurrentWorkload, "max_concurrent_tasks", a.MaxConcurrentTasks)
			}
		}
	}
}

func (j *Job) scanDelegationBacklog(ctx context.Context) {
	for _, lvl := range []ids.Level{ids.LevelGlobal, ids.LevelProject, ids.LevelBranch, ids.LevelTask} {
		pending, err := j.store.Delegations.List(ctx, lvl)
		if err != nil {
			j.logger.Warn("maintenance: listing delegations failed", "target_level", lvl, "error", err)
			continue
		}
		unprocessed := 0
		for _, d := range pending {
			if !d.Processed {
				unprocessed++
			}
		}
		if unprocessed > 0 {
			j.logger.Info("maintenance: delegation backlog", "target_level", lvl, "unprocessed", unprocessed)
		}
	}
}
