package branchsvc_test

import (
	"testing"

	"github.com/riverforge/contextmcp/internal/branchsvc"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/tasksvc"
	"github.com/riverforge/contextmcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsMissingProject(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Branch.Create(f.Ctx(), branchsvc.CreateInput{ProjectID: "nope", Name: "b"})
	assert.Error(t, err)
}

func TestCreateDefaultsPriorityAndStatus(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()
	b, err := f.Branch.Create(f.Ctx(), branchsvc.CreateInput{ProjectID: p.ID, Name: "feature"})
	require.NoError(t, err)
	assert.Equal(t, ids.PriorityMedium, b.Priority)
	assert.Equal(t, ids.EntityActive, b.Status)
}

func TestArchiveAndRestore(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()

	archived, err := f.Branch.Archive(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, ids.EntityArchived, archived.Status)

	restored, err := f.Branch.Restore(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, ids.EntityActive, restored.Status)
}

func TestUpdateRejectsInvalidPriority(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()
	_, err := f.Branch.Update(f.Ctx(), b.ID, domain.Doc{"priority": "urgent"})
	assert.Error(t, err)
}

func TestGetStatisticsWithNoTasks(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()
	stats, err := f.Branch.GetStatistics(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TaskCount)
	assert.Equal(t, 0, stats.ProgressPercentage)
}

func TestGetStatisticsComputesProgress(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()
	for i := 0; i < 4; i++ {
		_, err := f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{BranchID: b.ID, Title: "t"})
		require.NoError(t, err)
	}
	all, err := f.Tasks.List(f.Ctx(), repository.TaskFilters{BranchID: &b.ID})
	require.NoError(t, err)
	require.Len(t, all, 4)
	_, err = f.Tasks.Complete(f.Ctx(), all[0].ID, "done", "")
	require.NoError(t, err)

	stats, err := f.Branch.GetStatistics(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TaskCount)
	assert.Equal(t, 1, stats.CompletedTaskCount)
	assert.Equal(t, 25, stats.ProgressPercentage)
}
