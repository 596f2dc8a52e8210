package agentsvc_test

import (
	"testing"

	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/tasksvc"
	"github.com/riverforge/contextmcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterIsIdempotent is spec.md §8.2: registering the same agent id
// twice under the same project returns the existing agent unchanged.
func TestRegisterIsIdempotent(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()

	first, err := f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{
		ID: "agent-1", ProjectID: p.ID, Name: "worker", MaxConcurrentTasks: 3,
	})
	require.NoError(t, err)

	second, err := f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{
		ID: "agent-1", ProjectID: p.ID, Name: "different-name",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, 3, second.MaxConcurrentTasks)
}

func TestRegisterDefaultsMaxConcurrentTasks(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()
	a, err := f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{ID: "agent-1", ProjectID: p.ID, Name: "worker"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.MaxConcurrentTasks)
	assert.Equal(t, ids.AgentAvailable, a.Status)
}

func TestAssignToBranchAutoRegisters(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()

	a, err := f.Agent.AssignToBranch(f.Ctx(), "agent-1", b.ProjectID, b.ID)
	require.NoError(t, err)
	assert.Contains(t, a.AssignedTrees, b.ID)

	branch, err := f.Branch.Get(f.Ctx(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, branch.AssignedAgentID)
	assert.Equal(t, ids.AgentID("agent-1"), *branch.AssignedAgentID)
}

func TestAssignToBranchRejectsMissingBranch(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Agent.AssignToBranch(f.Ctx(), "agent-1", "proj-1", "nope")
	assert.Error(t, err)
}

func TestAssignToBranchIsIdempotent(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()

	first, err := f.Agent.AssignToBranch(f.Ctx(), "agent-1", b.ProjectID, b.ID)
	require.NoError(t, err)
	second, err := f.Agent.AssignToBranch(f.Ctx(), "agent-1", b.ProjectID, b.ID)
	require.NoError(t, err)
	assert.Len(t, second.AssignedTrees, len(first.AssignedTrees))
}

func TestUnassignFromBranchClearsBinding(t *testing.T) {
	f := testutil.New(t)
	b := f.SeedBranch()
	_, err := f.Agent.AssignToBranch(f.Ctx(), "agent-1", b.ProjectID, b.ID)
	require.NoError(t, err)

	a, err := f.Agent.UnassignFromBranch(f.Ctx(), "agent-1", b.ID)
	require.NoError(t, err)
	assert.NotContains(t, a.AssignedTrees, b.ID)

	branch, err := f.Branch.Get(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Nil(t, branch.AssignedAgentID)
}

func TestRebalanceAdvisoryOnly(t *testing.T) {
	f := testutil.New(t)
	branch := f.SeedBranch()

	_, err := f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{ID: "idle", ProjectID: branch.ProjectID, Name: "idle", MaxConcurrentTasks: 2})
	require.NoError(t, err)
	_, err = f.Agent.Register(f.Ctx(), agentsvc.RegisterInput{ID: "busy", ProjectID: branch.ProjectID, Name: "busy", MaxConcurrentTasks: 1})
	require.NoError(t, err)

	_, err = f.Tasks.Create(f.Ctx(), tasksvc.CreateInput{
		BranchID: branch.ID, Title: "work", Assignees: []ids.AgentID{"busy"}, Status: ids.StatusInProgress,
	})
	require.NoError(t, err)

	suggestions, err := f.Agent.Rebalance(f.Ctx(), branch.ProjectID)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	byID := map[ids.AgentID]agentsvc.RebalanceSuggestion{}
	for _, s := range suggestions {
		byID[s.AgentID] = s
	}
	assert.Equal(t, "idle: eligible for new assignment", byID["idle"].Recommendation)
	assert.Equal(t, "overloaded: consider reassigning new work elsewhere", byID["busy"].Recommendation)
}
