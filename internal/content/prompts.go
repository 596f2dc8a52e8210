package content

import (
	"fmt"
	"strings"

	"github.com/riverforge/contextmcp/internal/mcp"
)

// --- contextmcp-guide prompt ---

// GuidePrompt is a comprehensive usage guide for the tool surface.
type GuidePrompt struct{}

func (p *GuidePrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "contextmcp-guide",
		Description: "Comprehensive usage guide: hierarchy, envelope shape, and the six manage_* tools",
		Arguments: []mcp.PromptArgument{
			{Name: "focus", Description: "Optional: hierarchy, envelope, tasks, contexts, agents", Required: false},
		},
	}
}

func (p *GuidePrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	focus := strings.ToLower(arguments["focus"])
	text := guideOverview
	switch focus {
	case "hierarchy":
		text = guideHierarchy
	case "envelope":
		text = guideEnvelope
	case "tasks":
		text = guideTasks
	case "contexts":
		text = guideContexts
	case "agents":
		text = guideAgents
	}
	return &mcp.PromptsGetResult{
		Description: "Usage guide for the hierarchical task/context orchestration service",
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent(text)},
		},
	}, nil
}

const guideOverview = `# ContextMCP usage guide

This server organizes work as Global → Project → Branch → Task (→ Subtask),
with an inheritable context document attached at every level. Call
manage_project/manage_git_branch/manage_task to build the hierarchy; call
manage_context to read or adjust the attached documents directly; call
manage_agent to register autonomous workers and bind them to branches.

Every response is an envelope carrying workflow_guidance.next_actions —
follow those rather than guessing the next call.`

const guideHierarchy = `# Hierarchy

Global (singleton) owns Projects, which own Branches, which own Tasks,
which own Subtasks. A child level cannot be created until its parent
exists; manage_task create and manage_context create will auto-create
missing ancestors with default data when the identifiers needed to do so
are available (e.g. a project_id supplied alongside a branch create).`

const guideEnvelope = `# Response envelope

{
  status: "success" | "partial_success" | "failure",
  success: bool,
  operation: string,
  operation_id: uuid,
  timestamp: rfc3339,
  confirmation: { operation_completed, data_persisted, partial_failures[] },
  data?, error?, metadata?, workflow_guidance?
}

partial_success means the primary write committed but a secondary step
(context sync, cache invalidation, rollback) did not; it is never returned
as if it were full success.`

const guideTasks = `# Tasks

manage_task create requires branch_id and title; it synchronously creates
the task's context. manage_task complete requires completion_summary and
fails if any subtask or dependency is not done. manage_task next(branch_id)
returns the highest-priority actionable task, tie-broken by oldest
updated_at then lowest id.`

const guideContexts = `# Contexts

manage_context resolve walks the ancestor chain, deep-merging each level's
document into the next unless inheritance_disabled stops the walk early or
force_local_only discards everything accumulated so far. manage_context
delegate queues a propagation request to a higher level; it does not
mutate the target synchronously.`

const guideAgents = `# Agents

manage_agent register is idempotent per (project_id, agent_id).
manage_git_branch assign_agent auto-registers the agent if missing and
binds branch.assigned_agent_id. current_workload increments on task start
and decrements on task completion; status becomes "busy" once workload
reaches max_concurrent_tasks.`

// --- contextmcp-workflow prompt ---

// WorkflowPrompt gives a step-by-step guide for a specific change, scoped
// to a branch id supplied as an argument.
type WorkflowPrompt struct{}

func (p *WorkflowPrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "contextmcp-workflow",
		Description: "Step-by-step guide for driving a unit of work through the task lifecycle on a given branch",
		Arguments: []mcp.PromptArgument{
			{Name: "branch_id", Description: "Branch to drive work on", Required: false},
		},
	}
}

func (p *WorkflowPrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	branchID := arguments["branch_id"]
	if branchID == "" {
		branchID = "<branch_id>"
	}
	text := fmt.Sprintf(`# Workflow for branch %s

1. manage_task(action="next", branch_id=%q) — pick the next actionable task.
2. manage_task(action="update", task_id=<id>, details="progress: ...") as
   work proceeds — a "progress:"/"completed:"/"implemented:" prefix in
   details auto-advances status to in_progress and appends a progress note.
3. For decomposed work: manage_subtask(action="add", task_id=<id>, ...),
   then manage_subtask(action="complete", ...) as each finishes.
4. manage_task(action="complete", task_id=<id>, completion_summary="...")
   once every subtask and dependency is done.
5. manage_task(action="next", branch_id=%q) again for the next task.`, branchID, branchID, branchID)

	return &mcp.PromptsGetResult{
		Description: "Step-by-step task workflow",
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent(text)},
		},
	}, nil
}
