package contextengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextEngineCtx() context.Context { return context.Background() }

func newEngine(t *testing.T, cacheEnabled bool) (*contextengine.Engine, *clock.Fixed) {
	t.Helper()
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewRepositoryStore(c)
	return contextengine.New(store, c, cacheEnabled, time.Hour), c
}

func TestCreateGlobalSingleton(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	rec, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{"organization_name": "acme"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ids.ContextID(ids.GlobalSingletonID), rec.ID)

	_, err = e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{}, nil, nil)
	assert.Error(t, err)
}

func TestCreateGlobalRejectsWrongID(t *testing.T) {
	e, _ := newEngine(t, true)
	_, err := e.Create(contextEngineCtx(), ids.LevelGlobal, "not-the-singleton", domain.Doc{}, nil, nil)
	assert.Error(t, err)
}

func TestCreateTaskAutoCreatesAncestors(t *testing.T) {
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewRepositoryStore(c)
	e := contextengine.New(store, c, true, time.Hour)
	ctx := contextEngineCtx()

	// Real domain entities for the task's branch/project, so deriveParentID
	// can discover the chain without any explicit fk hint in the payload
	// (spec.md §4.2.3's "discovered project_id if the task's branch exists").
	require.NoError(t, store.Projects.Create(ctx, &domain.Project{ID: "proj-1", Name: "p"}))
	require.NoError(t, store.Branches.Create(ctx, &domain.Branch{ID: "branch-1", ProjectID: "proj-1", Name: "b"}))
	require.NoError(t, store.Tasks.Create(ctx, &domain.Task{ID: "task-1", BranchID: "branch-1", Title: "t"}))

	_, err := e.Create(ctx, ids.LevelTask, "task-1", domain.Doc{"task_data": domain.Doc{}}, nil, nil)
	require.NoError(t, err)

	globals, err := e.List(ctx, ids.LevelGlobal, repository.ContextFilters{})
	require.NoError(t, err)
	assert.Len(t, globals, 1)

	_, _, err = e.Get(ctx, ids.LevelBranch, "branch-1", false, false)
	assert.NoError(t, err, "branch context should have been auto-created")
	_, _, err = e.Get(ctx, ids.LevelProject, "proj-1", false, false)
	assert.NoError(t, err, "project context should have been auto-created")
}

func TestUpdateMergeSemantics(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"a": domain.Doc{"x": 1}, "l": []any{1}}}, nil, nil)
	require.NoError(t, err)

	updated, err := e.Update(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"a": domain.Doc{"y": 2}, "l": []any{2}}}, false)
	require.NoError(t, err)

	settings := updated.Data["global_settings"].(domain.Doc)
	a := settings["a"].(domain.Doc)
	assert.Equal(t, 1, a["x"])
	assert.Equal(t, 2, a["y"])
	list := settings["l"].([]any)
	assert.Equal(t, []any{1, 2}, list)
	assert.Equal(t, 2, updated.Version)
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()
	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{}, nil, nil)
	require.NoError(t, err)

	_, err = e.Update(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{"bogus_field": 1}, false)
	assert.Error(t, err)
}

func TestResolveInheritanceMerge(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"a": domain.Doc{"x": 1}, "l": []any{1}}}, nil, nil)
	require.NoError(t, err)

	_, err = e.Create(ctx, ids.LevelProject, "proj-1",
		domain.Doc{"project_settings": domain.Doc{"a": domain.Doc{"y": 2}, "l": []any{2}}}, nil, nil)
	require.NoError(t, err)

	_, err = e.Create(ctx, ids.LevelBranch, "branch-1",
		domain.Doc{"project_id": "proj-1", "branch_settings": domain.Doc{"a": domain.Doc{"x": 9}}}, nil, nil)
	require.NoError(t, err)

	resolved, meta, err := e.Resolve(ctx, ids.LevelBranch, "branch-1", false)
	require.NoError(t, err)
	assert.Equal(t, []ids.Level{ids.LevelGlobal, ids.LevelProject, ids.LevelBranch}, meta.Chain)
	assert.Equal(t, 3, meta.InheritanceDepth)

	// Each level keeps its settings under its own top-level key, so the deep
	// merge places global_settings and branch_settings side by side rather
	// than combining them.
	gs := resolved.Data["global_settings"].(domain.Doc)
	assert.Equal(t, []any{1}, gs["l"])
	bs := resolved.Data["branch_settings"].(domain.Doc)
	a := bs["a"].(domain.Doc)
	assert.Equal(t, 9, a["x"])
}

func TestResolveStopsOnInheritanceDisabled(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelProject, "proj-1",
		domain.Doc{"inheritance_disabled": true, "project_settings": domain.Doc{"solo": true}}, nil, nil)
	require.NoError(t, err)

	resolved, meta, err := e.Resolve(ctx, ids.LevelProject, "proj-1", false)
	require.NoError(t, err)
	assert.Equal(t, []ids.Level{ids.LevelProject}, meta.Chain)
	assert.Equal(t, 1, meta.InheritanceDepth)
	assert.Equal(t, true, resolved.Data["project_settings"].(domain.Doc)["solo"])
}

func TestResolveForceLocalOnlyDiscardsAncestors(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"shared": true}}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelProject, "proj-1",
		domain.Doc{"force_local_only": true, "project_settings": domain.Doc{"only_mine": true}}, nil, nil)
	require.NoError(t, err)

	resolved, _, err := e.Resolve(ctx, ids.LevelProject, "proj-1", false)
	require.NoError(t, err)
	_, hasShared := resolved.Data["global_settings"]
	assert.False(t, hasShared)
}

func TestCacheBypassOnStaleDependencyHash(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"v": 1}}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelProject, "proj-1", domain.Doc{}, nil, nil)
	require.NoError(t, err)

	first, _, err := e.Resolve(ctx, ids.LevelProject, "proj-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Data["global_settings"].(domain.Doc)["v"])

	// Mutating the ancestor bumps its version, which must invalidate the
	// cached merge even though propagate wasn't explicitly requested on the
	// read side (spec.md §4.2.4: hit only if dependencies_hash still matches).
	_, err = e.Update(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"v": 2}}, true)
	require.NoError(t, err)

	second, _, err := e.Resolve(ctx, ids.LevelProject, "proj-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Data["global_settings"].(domain.Doc)["v"])
}

func TestCacheDisabledStillCorrect(t *testing.T) {
	e, _ := newEngine(t, false)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID),
		domain.Doc{"global_settings": domain.Doc{"v": 1}}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelProject, "proj-1", domain.Doc{}, nil, nil)
	require.NoError(t, err)

	resolved, meta, err := e.Resolve(ctx, ids.LevelProject, "proj-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved.Data["global_settings"].(domain.Doc)["v"])
	assert.Equal(t, 2, meta.InheritanceDepth)
}

func TestAddInsightAndProgress(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()
	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{}, nil, nil)
	require.NoError(t, err)

	rec, err := e.AddInsight(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), "found a thing", "bug", "high", "agent-1")
	require.NoError(t, err)
	require.Len(t, rec.Insights, 1)
	assert.Equal(t, "found a thing", rec.Insights[0].Content)

	rec, err = e.AddProgress(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), "halfway done", "agent-1")
	require.NoError(t, err)
	require.Len(t, rec.ProgressNotes, 1)

	_, err = e.AddInsight(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), "", "", "", "")
	assert.Error(t, err)
}

func TestDeleteCascadesDownTheOwnershipChain(t *testing.T) {
	e, _ := newEngine(t, true)
	ctx := contextEngineCtx()

	_, err := e.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelProject, "proj-1", domain.Doc{}, nil, nil)
	require.NoError(t, err)
	_, err = e.Create(ctx, ids.LevelBranch, "branch-1", domain.Doc{"project_id": "proj-1"}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, ids.LevelProject, "proj-1"))

	_, _, err = e.Get(ctx, ids.LevelBranch, "branch-1", false, false)
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	e, _ := newEngine(t, true)
	_, _, err := e.Get(contextEngineCtx(), ids.LevelProject, "missing", false, false)
	assert.Error(t, err)
}
