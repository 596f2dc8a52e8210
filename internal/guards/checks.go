package guards

import (
	"context"
	"fmt"
	"strings"
)

// --- Task completion guards (spec.md §4.3.5, §8.1) ---

// SubtasksDone ensures every subtask of a task is done before the task can
// be completed.
var SubtasksDone = NewGuardFunc("subtasks_done", func(_ context.Context, gctx *GuardContext) Result {
	if len(gctx.IncompleteSubtasks) == 0 {
		return Pass("subtasks_done")
	}
	return Fail("subtasks_done", HardBlock,
		fmt.Sprintf("subtasks not done: %s", strings.Join(gctx.IncompleteSubtasks, ", ")),
		"Complete each listed subtask with manage_subtask(action=\"complete\", ...) before completing the parent task.",
	)
})

// DependenciesDone ensures every dependency of a task is done before the
// task can be completed.
var DependenciesDone = NewGuardFunc("dependencies_done", func(_ context.Context, gctx *GuardContext) Result {
	if len(gctx.IncompleteDeps) == 0 {
		return Pass("dependencies_done")
	}
	return Fail("dependencies_done", HardBlock,
		fmt.Sprintf("dependencies not done: %s", strings.Join(gctx.IncompleteDeps, ", ")),
		"Complete each listed dependency with manage_task(action=\"complete\", ...) before completing this task.",
	)
})

// CompletionSummaryRequired ensures a non-empty completion_summary accompanies
// a completion request (spec.md §3.2 "Completion requires context").
var CompletionSummaryRequired = NewGuardFunc("completion_summary_required", func(_ context.Context, gctx *GuardContext) Result {
	if strings.TrimSpace(gctx.CompletionSummary) != "" {
		return Pass("completion_summary_required")
	}
	return Fail("completion_summary_required", HardBlock,
		"completion_summary must not be empty",
		"Retry manage_task(action=\"complete\", ...) with a non-empty completion_summary.",
	)
})

// CompletionGuards returns the guard set run before a task may transition
// to done.
func CompletionGuards() []Guard {
	return []Guard{
		CompletionSummaryRequired,
		SubtasksDone,
		DependenciesDone,
	}
}

// --- Dependency-graph guards (spec.md §3.2, §4.3.4, §8.1) ---

// NoSelfDependency rejects a dependency edge from a task to itself.
var NoSelfDependency = NewGuardFunc("no_self_dependency", func(_ context.Context, gctx *GuardContext) Result {
	if !gctx.SelfDependency {
		return Pass("no_self_dependency")
	}
	return Fail("no_self_dependency", HardBlock,
		"a task cannot depend on itself",
		"Choose a different dependency_id.",
	)
})

// NoDependencyCycle rejects a dependency edge whose transitive closure
// would contain a path back to its source.
var NoDependencyCycle = NewGuardFunc("no_dependency_cycle", func(_ context.Context, gctx *GuardContext) Result {
	if !gctx.WouldCycle {
		return Pass("no_dependency_cycle")
	}
	return Fail("no_dependency_cycle", HardBlock,
		"adding this dependency would form a cycle",
		"Remove an existing edge along the cycle before adding this one, or choose a different dependency_id.",
	)
})

// DependencyEdgeGuards returns the guard set run before a new
// task-dependency edge is persisted.
func DependencyEdgeGuards() []Guard {
	return []Guard{
		NoSelfDependency,
		NoDependencyCycle,
	}
}

// --- Hierarchy guards (spec.md §4.2.3) ---

// AncestorChainComplete ensures auto-creation resolved every required
// ancestor; if not, it surfaces which levels are still missing.
var AncestorChainComplete = NewGuardFunc("ancestor_chain_complete", func(_ context.Context, gctx *GuardContext) Result {
	if len(gctx.MissingAncestors) == 0 {
		return Pass("ancestor_chain_complete")
	}
	return Fail("ancestor_chain_complete", HardBlock,
		"required ancestor context(s) could not be auto-created: "+strings.Join(gctx.MissingAncestors, ", "),
		"Create the missing ancestor(s) explicitly with manage_context(action=\"create\", ...), then retry.",
	)
})

// HierarchyGuards returns the guard set run after auto-creation is
// attempted for a missing ancestor chain.
func HierarchyGuards() []Guard {
	return []Guard{AncestorChainComplete}
}
