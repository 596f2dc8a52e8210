package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidateTitleBoundary(t *testing.T) {
	base := &Task{ID: ids.TaskID("t1"), Title: strings.Repeat("a", 200)}
	require.NoError(t, base.Validate())

	tooLong := &Task{ID: ids.TaskID("t1"), Title: strings.Repeat("a", 201)}
	err := tooLong.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestTaskValidateRejectsEmptyTitle(t *testing.T) {
	task := &Task{ID: ids.TaskID("t1")}
	assert.Error(t, task.Validate())
}

func TestTaskValidateRejectsSelfDependency(t *testing.T) {
	task := &Task{ID: ids.TaskID("t1"), Title: "x", Dependencies: []ids.TaskID{"t1"}}
	err := task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies")
}

func TestTaskValidateRejectsBadProgress(t *testing.T) {
	task := &Task{ID: ids.TaskID("t1"), Title: "x", ProgressPercentage: 101}
	assert.Error(t, task.Validate())

	task.ProgressPercentage = -1
	assert.Error(t, task.Validate())

	task.ProgressPercentage = 100
	assert.NoError(t, task.Validate())
}

func TestTaskHasDependency(t *testing.T) {
	task := &Task{Dependencies: []ids.TaskID{"a", "b"}}
	assert.True(t, task.HasDependency("a"))
	assert.False(t, task.HasDependency("c"))
}

func TestTaskIsActionable(t *testing.T) {
	for _, st := range []ids.TaskStatus{ids.StatusTodo, ids.StatusInProgress} {
		task := &Task{Status: st}
		assert.True(t, task.IsActionable(), "status %s should be actionable", st)
	}
	for _, st := range []ids.TaskStatus{ids.StatusDone, ids.StatusBlocked, ids.StatusCancelled, ids.StatusReview} {
		task := &Task{Status: st}
		assert.False(t, task.IsActionable(), "status %s should not be actionable", st)
	}
}

func TestSubtaskValidate(t *testing.T) {
	st := &Subtask{Title: strings.Repeat("b", 201)}
	assert.Error(t, st.Validate())

	st.Title = "ok"
	st.Description = strings.Repeat("c", 1001)
	assert.Error(t, st.Validate())

	st.Description = "short"
	assert.NoError(t, st.Validate())
}

func TestAgentWorkloadLifecycle(t *testing.T) {
	a := &Agent{Name: "worker", MaxConcurrentTasks: 1, Status: ids.AgentAvailable}
	require.NoError(t, a.Validate())

	a.StartTask("t1")
	assert.Equal(t, 1, a.CurrentWorkload)
	assert.Equal(t, ids.AgentBusy, a.Status)
	assert.Contains(t, a.ActiveTasks, ids.TaskID("t1"))

	a.CompleteTask("t1", 10*time.Second, true)
	assert.Equal(t, 0, a.CurrentWorkload)
	assert.Equal(t, ids.AgentAvailable, a.Status)
	assert.NotContains(t, a.ActiveTasks, ids.TaskID("t1"))
	assert.Contains(t, a.CompletedTasks, ids.TaskID("t1"))
	assert.Equal(t, 100.0, a.SuccessRate)
	assert.Equal(t, 10.0, a.AverageTaskDuration)
}

func TestAgentCompleteTaskRollingAverage(t *testing.T) {
	a := &Agent{Name: "worker", MaxConcurrentTasks: 2}
	a.StartTask("t1")
	a.CompleteTask("t1", 10*time.Second, true)
	a.StartTask("t2")
	a.CompleteTask("t2", 20*time.Second, false)

	// alpha=0.3: avg = 0.3*20 + 0.7*10 = 13
	assert.InDelta(t, 13.0, a.AverageTaskDuration, 0.001)
	// success: 0.3*0 + 0.7*100 = 70
	assert.InDelta(t, 70.0, a.SuccessRate, 0.001)
}

func TestAgentPausedStatusNotOverridden(t *testing.T) {
	a := &Agent{Name: "worker", MaxConcurrentTasks: 1, Status: ids.AgentPaused}
	a.StartTask("t1")
	assert.Equal(t, ids.AgentPaused, a.Status)
}

func TestBranchProgressPercentage(t *testing.T) {
	b := &Branch{}
	assert.Equal(t, 0, b.ProgressPercentage())

	b.TaskCount = 4
	b.CompletedTaskCount = 1
	assert.Equal(t, 25, b.ProgressPercentage())
}

func TestProjectValidate(t *testing.T) {
	p := &Project{Name: ""}
	assert.Error(t, p.Validate())
	p.Name = strings.Repeat("p", 201)
	assert.Error(t, p.Validate())
	p.Name = "ok"
	assert.NoError(t, p.Validate())
}
