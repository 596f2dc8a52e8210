package subtasksvc_test

import (
	"testing"

	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
	"github.com/riverforge/contextmcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsMissingParent(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: "nope", Title: "x"})
	assert.Error(t, err)
}

func TestCreateAppendsToParent(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")

	st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
	require.NoError(t, err)
	assert.Equal(t, ids.StatusTodo, st.Status)
	assert.Equal(t, ids.PriorityMedium, st.Priority)

	reloaded, _, err := f.Tasks.Get(f.Ctx(), task.ID, false)
	require.NoError(t, err)
	assert.Contains(t, reloaded.Subtasks, st.ID)
}

func TestCompleteRecomputesParentProgressRounded(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")

	var subs []*domain.Subtask
	for i := 0; i < 3; i++ {
		st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
		require.NoError(t, err)
		subs = append(subs, st)
	}

	_, err := f.Subtask.Complete(f.Ctx(), subs[0].ID, "done", "minor")
	require.NoError(t, err)

	reloaded, _, err := f.Tasks.Get(f.Ctx(), task.ID, false)
	require.NoError(t, err)
	// 1 of 3 done: (1*100 + 3/2) / 3 = 101 / 3 = 33
	assert.Equal(t, 33, reloaded.ProgressPercentage)

	_, err = f.Subtask.Complete(f.Ctx(), subs[1].ID, "done", "")
	require.NoError(t, err)
	_, err = f.Subtask.Complete(f.Ctx(), subs[2].ID, "done", "")
	require.NoError(t, err)

	reloaded, _, err = f.Tasks.Get(f.Ctx(), task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 100, reloaded.ProgressPercentage)
}

func TestUpdateAppendsNotesAndBlockers(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")
	st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
	require.NoError(t, err)

	updated, err := f.Subtask.Update(f.Ctx(), st.ID, domain.Doc{
		"progress_note": "halfway",
		"blocker":       "waiting on review",
		"insight":       "found a shortcut",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"halfway"}, updated.ProgressNotes)
	assert.Equal(t, []string{"waiting on review"}, updated.Blockers)
	assert.Equal(t, []string{"found a shortcut"}, updated.InsightsFound)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")
	st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
	require.NoError(t, err)

	_, err = f.Subtask.Update(f.Ctx(), st.ID, domain.Doc{"status": "orbiting"})
	assert.Error(t, err)
}

func TestDeleteRejectsWhileInProgress(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")
	st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
	require.NoError(t, err)

	_, err = f.Subtask.Update(f.Ctx(), st.ID, domain.Doc{"status": "in_progress"})
	require.NoError(t, err)

	err = f.Subtask.Delete(f.Ctx(), st.ID)
	assert.Error(t, err)
}

func TestDeleteAllowedAfterCancel(t *testing.T) {
	f := testutil.New(t)
	task := f.SeedTask("parent")
	st, err := f.Subtask.Create(f.Ctx(), subtasksvc.CreateInput{TaskID: task.ID, Title: "child"})
	require.NoError(t, err)

	_, err = f.Subtask.Update(f.Ctx(), st.ID, domain.Doc{"status": "in_progress"})
	require.NoError(t, err)
	_, err = f.Subtask.Update(f.Ctx(), st.ID, domain.Doc{"status": "cancelled"})
	require.NoError(t, err)

	err = f.Subtask.Delete(f.Ctx(), st.ID)
	require.NoError(t, err)

	reloaded, _, err := f.Tasks.Get(f.Ctx(), task.ID, false)
	require.NoError(t, err)
	assert.NotContains(t, reloaded.Subtasks, st.ID)
}
