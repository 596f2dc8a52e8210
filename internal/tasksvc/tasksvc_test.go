package tasksvc_test

import (
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
	"github.com/riverforge/contextmcp/internal/tasksvc"
	"github.com/riverforge/contextmcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateWithAutoContext is scenario 1 of spec.md §8.4: creating a task
// on a branch whose project has no project-context and whose branch has no
// branch-context auto-creates the whole ancestor chain, and the task gets
// its own task-context synchronously.
func TestCreateWithAutoContext(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()

	task, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{
		BranchID: branch.ID, Title: "X", Description: "Y",
	})
	require.NoError(t, err)
	require.NotNil(t, task.ContextID)
	assert.Equal(t, ids.ContextID(task.ID), *task.ContextID)

	_, _, err = f.Engine.Get(f.Ctx(), ids.LevelTask, ids.ContextID(task.ID), false, false)
	require.NoError(t, err)
	_, _, err = f.Engine.Get(f.Ctx(), ids.LevelBranch, ids.ContextID(branch.ID), false, false)
	require.NoError(t, err)
	_, _, err = f.Engine.Get(f.Ctx(), ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), false, false)
	require.NoError(t, err)
}

func TestCreateRejectsMissingBranch(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: "nope", Title: "X"})
	assert.Error(t, err)
}

func TestCreateRejectsInvalidTitle(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	_, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: ""})
	assert.Error(t, err)
}

func TestUpdateProgressReclassification(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("task one")

	res, err := f.Tasks.Update(f.Ctx(), task.ID, domain.Doc{"details": "progress: halfway there"})
	require.NoError(t, err)
	assert.True(t, res.ProgressReported)
	assert.Equal(t, ids.StatusInProgress, res.Task.Status)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("task one")
	_, err := f.Tasks.Update(f.Ctx(), task.ID, domain.Doc{"status": "teleporting"})
	assert.Error(t, err)
}

func TestCompleteBlockedBySubtask(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")
	_, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "sub"})
	require.NoError(t, err)

	_, err = f.Tasks.Complete(f.Ctx(), task.ID, "done", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subtasks not done")
}

func TestCompleteBlockedByDependency(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	dep := f.SeedTaskIn(branch.ID, "dependency")
	task := f.SeedTaskIn(branch.ID, "main")

	_, err := f.Tasks.AddDependency(f.Ctx(), task.ID, dep.ID)
	require.NoError(t, err)

	_, err = f.Tasks.Complete(f.Ctx(), task.ID, "done", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies not done")
}

func TestCompleteRequiresSummary(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("solo")
	_, err := f.Tasks.Complete(f.Ctx(), task.ID, "", "")
	assert.Error(t, err)
}

// TestCompleteHappyPath is scenario 6 of spec.md §8.4.
func TestCompleteHappyPath(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("solo")

	completed, err := f.Tasks.Complete(f.Ctx(), task.ID, "ok", "unit tests pass")
	require.NoError(t, err)
	assert.Equal(t, ids.StatusDone, completed.Status)
	assert.Equal(t, 100, completed.ProgressPercentage)

	rec, _, err := f.Engine.Get(f.Ctx(), ids.LevelTask, ids.ContextID(task.ID), false, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Data["completion_summary"])
	assert.Equal(t, "unit tests pass", rec.Data["testing_notes"])
	assert.Equal(t, "done", rec.Data["status"])
}

func TestCompleteAutoCreatesMissingContext(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	task, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "no-ctx"})
	require.NoError(t, err)

	// Simulate a task whose context was never created (§4.3.5 step 4).
	require.NoError(t, f.Store.Contexts.Delete(f.Ctx(), ids.LevelTask, ids.ContextID(task.ID)))

	completed, err := f.Tasks.Complete(f.Ctx(), task.ID, "finished anyway", "")
	require.NoError(t, err)
	assert.Equal(t, ids.StatusDone, completed.Status)

	_, _, err = f.Engine.Get(f.Ctx(), ids.LevelTask, ids.ContextID(task.ID), false, false)
	assert.NoError(t, err)
}

func TestAddDependencyRejectsSelfAndCycle(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	a := f.SeedTaskIn(branch.ID, "A")
	b := f.SeedTaskIn(branch.ID, "B")
	c := f.SeedTaskIn(branch.ID, "C")

	_, err := f.Tasks.AddDependency(f.Ctx(), a.ID, a.ID)
	require.Error(t, err)

	_, err = f.Tasks.AddDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.Tasks.AddDependency(f.Ctx(), b.ID, c.ID)
	require.NoError(t, err)

	// A depends on B, B depends on C. C -> A would close the cycle.
	_, err = f.Tasks.AddDependency(f.Ctx(), c.ID, a.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestAddDependencyIsIdempotent(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	a := f.SeedTaskIn(branch.ID, "A")
	b := f.SeedTaskIn(branch.ID, "B")

	first, err := f.Tasks.AddDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)
	second, err := f.Tasks.AddDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Dependencies, second.Dependencies)
	assert.Len(t, second.Dependencies, 1)
}

func TestRemoveDependencyIsIdempotent(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	a := f.SeedTaskIn(branch.ID, "A")
	b := f.SeedTaskIn(branch.ID, "B")
	_, err := f.Tasks.AddDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)

	removed, err := f.Tasks.RemoveDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, removed.Dependencies)

	again, err := f.Tasks.RemoveDependency(f.Ctx(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Dependencies)
}

// TestNextTaskDeterminism is scenario 4 of spec.md §8.4: T1(high, updated=10),
// T2(high, updated=5), T3(critical, blocked-by T1) -> next() returns T2.
func TestNextTaskDeterminism(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()

	t1, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "T1", Priority: ids.PriorityHigh})
	require.NoError(t, err)
	f.Clock.Advance(time.Minute)
	t2, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "T2", Priority: ids.PriorityHigh})
	require.NoError(t, err)
	f.Clock.Advance(time.Minute)
	t3, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "T3", Priority: ids.PriorityCritical})
	require.NoError(t, err)
	_, err = f.Tasks.AddDependency(f.Ctx(), t3.ID, t1.ID)
	require.NoError(t, err)

	// Make T1 "newer" than T2 by touching it again after T2 was created.
	f.Clock.Advance(time.Minute)
	_, err = f.Tasks.Update(f.Ctx(), t1.ID, domain.Doc{"description": "touch"})
	require.NoError(t, err)

	next, err := f.Tasks.Next(f.Ctx(), branch.ID)
	require.NoError(t, err)
	assert.Equal(t, t2.ID, next.ID)
}

func TestNextTaskNoneActionable(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	_, err := f.Tasks.Next(f.Ctx(), branch.ID)
	assert.Error(t, err)
}

func TestListLimitBoundary(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	for i := 0; i < 5; i++ {
		_, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "t"})
		require.NoError(t, err)
	}

	tasks, err := f.Tasks.List(f.Ctx(), repository.TaskFilters{BranchID: &branch.ID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = f.Tasks.List(f.Ctx(), repository.TaskFilters{BranchID: &branch.ID, Limit: 1000})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(tasks), 100)
}

func TestSearchCaseInsensitive(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	_, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: branch.ID, Title: "Fix The Widget"})
	require.NoError(t, err)

	results, err := f.Tasks.Search(f.Ctx(), "widget", &branch.ID, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestGetDependencyInfo(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	dep := f.SeedTaskIn(branch.ID, "dep")
	task := f.SeedTaskIn(branch.ID, "main")
	_, err := f.Tasks.AddDependency(f.Ctx(), task.ID, dep.ID)
	require.NoError(t, err)

	_, info, err := f.Tasks.Get(f.Ctx(), task.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, info.TotalDependencies)
	assert.False(t, info.CanStart)

	_, err = f.Tasks.Complete(f.Ctx(), dep.ID, "done", "")
	require.NoError(t, err)

	_, info, err = f.Tasks.Get(f.Ctx(), task.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CompletedDependencies)
	assert.True(t, info.CanStart)

	_, depInfo, err := f.Tasks.Get(f.Ctx(), dep.ID, true)
	require.NoError(t, err)
	assert.True(t, depInfo.IsBlockingOthers)
}

func TestAgentWorkloadTracksTaskLifecycle(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()
	_, err := f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{
		ID: "agent-1", ProjectID: branch.ProjectID, Name: "worker",
	})
	require.NoError(t, err)

	task, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{
		BranchID: branch.ID, Title: "assigned",
		Assignees: []ids.AgentID{"agent-1"}, Status: ids.StatusInProgress,
	})
	require.NoError(t, err)

	agent, err := f.Agent.Get(f.Ctx(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.CurrentWorkload)
	assert.Equal(t, ids.AgentBusy, agent.Status)

	_, err = f.Tasks.Complete(f.Ctx(), task.ID, "shipped", "")
	require.NoError(t, err)

	agent, err = f.Agent.Get(f.Ctx(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.CurrentWorkload)
	assert.Contains(t, agent.CompletedTasks, task.ID)
}
