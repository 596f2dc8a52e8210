// Package testutil builds the shared test fixtures referenced throughout
// the suite (spec.md component C11): an in-memory repository store, a
// deterministic clock, and small helpers for seeding a project/branch/task
// hierarchy without repeating the same boilerplate in every _test.go file.
// Grounded on the teacher pack's denkhaus-knot/internal/testutil package,
// which follows the same "NewTestConfig → SetupTestX → CreateTestY" shape.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/branchsvc"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/projectsvc"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/repository/memory"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
	"github.com/riverforge/contextmcp/internal/tasksvc"
	"github.com/stretchr/testify/require"
)

// FixedNow is the instant every Fixture's clock starts at, so time-derived
// assertions (timestamps, duration rollups) are reproducible across runs.
var FixedNow = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// Fixture bundles a store and every use-case service over it, wired the way
// cmd/contextmcp's main wires them, minus the MCP transport and the
// feature-flag settings.
type Fixture struct {
	T       *testing.T
	Clock   *clock.Fixed
	Store   *repository.Store
	Engine  *contextengine.Engine
	Tasks   *tasksvc.Service
	Subtask *subtasksvc.Service
	Branch  *branchsvc.Service
	Project *projectsvc.Service
	Agent   *agentsvc.Service
}

// New builds a Fixture with the inheritance cache enabled (the default
// production configuration); tests that care about cache-disabled
// correctness should use NewWithCache(false) instead (spec.md §4.2.4:
// "correctness must hold with it disabled").
func New(t *testing.T) *Fixture {
	return NewWithCache(t, true)
}

// NewWithCache builds a Fixture with the inheritance cache toggled by
// cacheEnabled.
func NewWithCache(t *testing.T, cacheEnabled bool) *Fixture {
	t.Helper()
	c := clock.NewFixed(FixedNow)
	store := memory.NewRepositoryStore(c)
	engine := contextengine.New(store, c, cacheEnabled, time.Hour)
	return &Fixture{
		T:       t,
		Clock:   c,
		Store:   store,
		Engine:  engine,
		Tasks:   tasksvc.New(store, c, engine),
		Subtask: subtasksvc.New(store, c),
		Branch:  branchsvc.New(store, c),
		Project: projectsvc.New(store, c),
		Agent:   agentsvc.New(store, c),
	}
}

// Ctx returns a background context; a named helper so call sites read as
// intentional rather than a stray context.Background() sprinkled everywhere.
func (f *Fixture) Ctx() context.Context { return context.Background() }

// SeedProject creates a project with a throwaway name/user, failing the
// test immediately on error.
func (f *Fixture) SeedProject() *domain.Project {
	f.T.Helper()
	p, err := f.Project.Create(f.Ctx(), projectsvc.CreateInput{
		Name: "fixture-project", UserID: "fixture-user",
	})
	require.NoError(f.T, err)
	return p
}

// SeedBranch creates a branch under a freshly seeded project.
func (f *Fixture) SeedBranch() *domain.Branch {
	f.T.Helper()
	p := f.SeedProject()
	return f.SeedBranchIn(p.ID)
}

// SeedBranchIn creates a branch under the given project.
func (f *Fixture) SeedBranchIn(projectID ids.ProjectID) *domain.Branch {
	f.T.Helper()
	b, err := f.Branch.Create(f.Ctx(), branchsvc.CreateInput{
		ProjectID: projectID, Name: "fixture-branch",
	})
	require.NoError(f.T, err)
	return b
}

// SeedTask creates a task (with its auto-created task-context) under a
// freshly seeded branch.
func (f *Fixture) SeedTask(title string) *domain.Task {
	f.T.Helper()
	b := f.SeedBranch()
	return f.SeedTaskIn(b.ID, title)
}

// SeedTaskIn creates a task under the given branch.
func (f *Fixture) SeedTaskIn(branchID ids.BranchID, title string) *domain.Task {
	f.T.Helper()
	task, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{
		BranchID: branchID, Title: title,
	})
	require.NoError(f.T, err)
	return task
}
