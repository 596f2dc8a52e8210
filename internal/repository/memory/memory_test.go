package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *repository.Store {
	return memory.NewRepositoryStore(clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

// TestListContextsScopesByProject is a regression test: ListContexts must
// scope LevelBranch results by the branch's real ProjectID, not return every
// branch context regardless of which project asked for it.
func TestListContextsScopesByProject(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	p1 := &domain.Project{ID: "proj-1", Name: "one", Status: ids.EntityActive}
	p2 := &domain.Project{ID: "proj-2", Name: "two", Status: ids.EntityActive}
	require.NoError(t, s.Projects.Create(ctx, p1))
	require.NoError(t, s.Projects.Create(ctx, p2))

	b1 := &domain.Branch{ID: "branch-1", ProjectID: p1.ID, Name: "b1", Status: ids.EntityActive, Priority: ids.PriorityMedium}
	b2 := &domain.Branch{ID: "branch-2", ProjectID: p2.ID, Name: "b2", Status: ids.EntityActive, Priority: ids.PriorityMedium}
	require.NoError(t, s.Branches.Create(ctx, b1))
	require.NoError(t, s.Branches.Create(ctx, b2))

	mkCtx := func(id ids.ContextID) *domain.AnyContext {
		return &domain.AnyContext{
			ContextRecord: domain.ContextRecord{ID: id, Level: ids.LevelBranch, Version: 1, Metadata: domain.Doc{}},
			Data:          domain.Doc{},
		}
	}
	require.NoError(t, s.Contexts.Create(ctx, mkCtx(ids.ContextID(b1.ID))))
	require.NoError(t, s.Contexts.Create(ctx, mkCtx(ids.ContextID(b2.ID))))

	scoped, err := s.Contexts.List(ctx, ids.LevelBranch, repository.ContextFilters{ProjectID: &p1.ID})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, ids.ContextID(b1.ID), scoped[0].ID)

	all, err := s.Contexts.List(ctx, ids.LevelBranch, repository.ContextFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestListContextsScopesByBranch mirrors TestListContextsScopesByProject for
// LevelTask against the task's real BranchID.
func TestListContextsScopesByBranch(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	p := &domain.Project{ID: "proj-1", Name: "one", Status: ids.EntityActive}
	require.NoError(t, s.Projects.Create(ctx, p))

	b1 := &domain.Branch{ID: "branch-1", ProjectID: p.ID, Name: "b1", Status: ids.EntityActive, Priority: ids.PriorityMedium}
	b2 := &domain.Branch{ID: "branch-2", ProjectID: p.ID, Name: "b2", Status: ids.EntityActive, Priority: ids.PriorityMedium}
	require.NoError(t, s.Branches.Create(ctx, b1))
	require.NoError(t, s.Branches.Create(ctx, b2))

	t1 := &domain.Task{ID: "task-1", BranchID: b1.ID, Title: "t1", Status: ids.StatusTodo, Priority: ids.PriorityMedium}
	t2 := &domain.Task{ID: "task-2", BranchID: b2.ID, Title: "t2", Status: ids.StatusTodo, Priority: ids.PriorityMedium}
	require.NoError(t, s.Tasks.Create(ctx, t1))
	require.NoError(t, s.Tasks.Create(ctx, t2))

	mkCtx := func(id ids.ContextID) *domain.AnyContext {
		return &domain.AnyContext{
			ContextRecord: domain.ContextRecord{ID: id, Level: ids.LevelTask, Version: 1, Metadata: domain.Doc{}},
			Data:          domain.Doc{},
		}
	}
	require.NoError(t, s.Contexts.Create(ctx, mkCtx(ids.ContextID(t1.ID))))
	require.NoError(t, s.Contexts.Create(ctx, mkCtx(ids.ContextID(t2.ID))))

	scoped, err := s.Contexts.List(ctx, ids.LevelTask, repository.ContextFilters{BranchID: &b2.ID})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, ids.ContextID(t2.ID), scoped[0].ID)
}
