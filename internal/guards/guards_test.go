package guards_test

import (
	"context"
	"testing"

	"github.com/riverforge/contextmcp/internal/guards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionGuardsPassWhenClear(t *testing.T) {
	gctx := &guards.GuardContext{CompletionSummary: "done"}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.CompletionGuards())
	assert.False(t, outcome.Blocked)
	assert.Empty(t, outcome.HardBlocks())
}

func TestCompletionGuardsBlockOnIncompleteSubtasks(t *testing.T) {
	gctx := &guards.GuardContext{CompletionSummary: "done", IncompleteSubtasks: []string{"s1", "s2"}}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.CompletionGuards())
	assert.True(t, outcome.Blocked)
	require.Len(t, outcome.HardBlocks(), 1)
	assert.Contains(t, outcome.HardBlocks()[0].Message, "s1, s2")
}

func TestCompletionGuardsBlockOnIncompleteDependencies(t *testing.T) {
	gctx := &guards.GuardContext{CompletionSummary: "done", IncompleteDeps: []string{"d1"}}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.CompletionGuards())
	assert.True(t, outcome.Blocked)
}

func TestCompletionGuardsBlockOnMissingSummary(t *testing.T) {
	gctx := &guards.GuardContext{CompletionSummary: "  "}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.CompletionGuards())
	assert.True(t, outcome.Blocked)
}

func TestDependencyEdgeGuardsRejectSelfDependency(t *testing.T) {
	gctx := &guards.GuardContext{SelfDependency: true}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.DependencyEdgeGuards())
	assert.True(t, outcome.Blocked)
}

func TestDependencyEdgeGuardsRejectCycle(t *testing.T) {
	gctx := &guards.GuardContext{WouldCycle: true}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.DependencyEdgeGuards())
	assert.True(t, outcome.Blocked)
}

func TestDependencyEdgeGuardsPassClean(t *testing.T) {
	gctx := &guards.GuardContext{}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.DependencyEdgeGuards())
	assert.False(t, outcome.Blocked)
}

func TestHierarchyGuardsBlockOnMissingAncestors(t *testing.T) {
	gctx := &guards.GuardContext{MissingAncestors: []string{"project"}}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.HierarchyGuards())
	assert.True(t, outcome.Blocked)
}

func TestSoftBlockOverriddenByForce(t *testing.T) {
	soft := guards.NewGuardFunc("soft_thing", func(_ context.Context, gctx *guards.GuardContext) guards.Result {
		return guards.Fail("soft_thing", guards.SoftBlock, "needs confirmation", "pass force=true")
	})
	gctx := &guards.GuardContext{Force: true}
	outcome := guards.NewRunner().Run(context.Background(), gctx, []guards.Guard{soft})
	assert.False(t, outcome.Blocked)
	require.Len(t, outcome.SoftBlocks(), 1)

	gctx.Force = false
	outcome = guards.NewRunner().Run(context.Background(), gctx, []guards.Guard{soft})
	assert.True(t, outcome.Blocked)
}

func TestFormatBlockMessageListsHardAndSoftBlocks(t *testing.T) {
	gctx := &guards.GuardContext{CompletionSummary: "", IncompleteSubtasks: []string{"s1"}}
	outcome := guards.NewRunner().Run(context.Background(), gctx, guards.CompletionGuards())
	msg := outcome.FormatBlockMessage()
	assert.Contains(t, msg, "HARD_BLOCK")
	assert.Contains(t, msg, "completion_summary_required")
}

func TestFormatBlockMessageEmptyWhenNotBlocked(t *testing.T) {
	outcome := &guards.Outcome{}
	assert.Equal(t, "", outcome.FormatBlockMessage())
}

func TestFormatAdvisoryMessageListsWarningsAndSuggestions(t *testing.T) {
	warn := guards.NewGuardFunc("warn_thing", func(_ context.Context, _ *guards.GuardContext) guards.Result {
		return guards.Fail("warn_thing", guards.Warning, "you should know", "")
	})
	suggest := guards.NewGuardFunc("suggest_thing", func(_ context.Context, _ *guards.GuardContext) guards.Result {
		return guards.Fail("suggest_thing", guards.Suggestion, "consider this", "do X")
	})
	outcome := guards.NewRunner().Run(context.Background(), &guards.GuardContext{}, []guards.Guard{warn, suggest})
	assert.False(t, outcome.Blocked)
	msg := outcome.FormatAdvisoryMessage()
	assert.Contains(t, msg, "Warnings:")
	assert.Contains(t, msg, "Suggestions:")
	assert.Contains(t, msg, "do X")
}
