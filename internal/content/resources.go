// Package content provides MCP prompts and resources describing this
// service's own tool surface and entity model, kept as static reference
// docs served over MCP (the teacher's pattern for in-band client guidance).
package content

import "github.com/riverforge/contextmcp/internal/mcp"

// --- contextmcp://entity-model resource ---

// EntityModelResource exposes the four-level Task/Context hierarchy entity
// model so a calling agent can read it without guessing field names.
type EntityModelResource struct{}

func (r *EntityModelResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "contextmcp://entity-model",
		Name:        "Entity Model",
		Description: "Reference of the Global/Project/Branch/Task hierarchy, the four context entities, and Task/Subtask/Agent fields",
		MimeType:    "text/markdown",
	}
}

func (r *EntityModelResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "contextmcp://entity-model", MimeType: "text/markdown", Text: entityModelContent},
		},
	}, nil
}

const entityModelContent = `# Entity Model

## Hierarchy

Global → Project → Branch → Task (→ Subtask)

Every level except Global (a process-wide singleton, id "global_singleton")
requires its parent to exist before it can be created. manage_context
(and manage_task create) auto-creates missing ancestors with default data
when possible; when it cannot, the response carries a HIERARCHY_VIOLATION
error whose message names the incomplete ancestor chain. Its guidance gives
generic resolution steps and does not list specific tool calls.

## Task

id, title (<=200 chars), description (<=1000 chars), branch_id, status
(todo|in_progress|review|done|blocked|cancelled), priority
(low|medium|high|critical), details, estimated_effort, due_date,
context_id, progress_percentage, assignees, labels, dependencies,
subtasks.

A task may only transition to done when its context exists, a non-empty
completion_summary is supplied, all subtasks are done, and all
dependencies are done.

## Subtask

id, task_id, title, description, status, priority, assignees,
progress_percentage, progress_notes, blockers, completion_summary,
impact_on_parent, insights_found, completed_at.

## Branch / Project / Agent

Branch owns its tasks and its BranchContext. Project owns its branches and
its ProjectContext. Agent tracks capabilities, status, workload, and
rolling success-rate/duration stats.

## Context documents

Each of the four levels carries an open-shape JSON document (task_data /
branch_settings / project_settings / global_settings) plus version,
inheritance_disabled, force_local_only, insights, and progress notes.
Resolving a context (manage_context resolve, or get with
include_inherited=true) walks Global→Project→Branch→Task, deep-merging
each level's document into the accumulator unless the child disables
inheritance or forces local-only data.
`

// --- contextmcp://guardrails resource ---

// GuardrailsResource documents the invariants the core enforces.
type GuardrailsResource struct{}

func (r *GuardrailsResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "contextmcp://guardrails",
		Name:        "Guardrails",
		Description: "Invariants and failure modes enforced by the task/context engine",
		MimeType:    "text/markdown",
	}
}

func (r *GuardrailsResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "contextmcp://guardrails", MimeType: "text/markdown", Text: guardrailsContent},
		},
	}, nil
}

const guardrailsContent = `# Guardrails

- **Singleton global context.** Exactly one GlobalContext, id
  "global_singleton". A second create fails with ALREADY_EXISTS.
- **Task-context coupling.** A task is created atomically with its
  task-context. If context creation fails, the task is deleted; if that
  rollback also fails, the envelope returns partial_success with an
  itemized partial_failures list naming the orphan id.
- **Completion requires context.** complete(task) succeeds only if
  context_id is set, completion_summary is non-empty, every subtask is
  done, and every dependency is done.
- **No self-dependency, no cycles.** add_dependency(A, B) is rejected if
  A == B or if the transitive closure already contains a path from B
  back to A.
- **Dependency uniqueness & idempotence.** (task_id, depends_on) pairs are
  unique; adding an already-present edge is a no-op success, not an error.
- **Unknown fields rejected.** manage_task update and manage_context
  update reject fields outside each entity's known schema instead of
  silently accepting them.
- **Cache is an optimization only.** Every context read is correct with
  the inheritance cache disabled; a cache hit is only served when its
  dependency hash still matches current ancestor versions.
`

// --- contextmcp://tool-reference resource ---

// ToolReferenceResource is a quick-reference for the six tool surfaces.
type ToolReferenceResource struct{}

func (r *ToolReferenceResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "contextmcp://tool-reference",
		Name:        "Tool Reference",
		Description: "Quick reference for manage_task/manage_subtask/manage_context/manage_project/manage_git_branch/manage_agent",
		MimeType:    "text/markdown",
	}
}

func (r *ToolReferenceResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "contextmcp://tool-reference", MimeType: "text/markdown", Text: toolReferenceContent},
		},
	}, nil
}

const toolReferenceContent = `# Tool Reference

Every tool takes an "action" discriminator plus a typed parameter bundle.
An unknown action returns VALIDATION_ERROR with a valid_actions list.

| Tool | Actions |
|---|---|
| manage_task | create, update, get, delete, complete, list, search, next, add_dependency, remove_dependency |
| manage_subtask | add, update, complete, remove, get, list |
| manage_context | create, get, update, delete, resolve, list, delegate, add_insight, add_progress |
| manage_project | create, update, get, delete, list |
| manage_git_branch | create, get, list, update, delete, assign_agent, unassign_agent, get_statistics, archive, restore |
| manage_agent | register, unregister, assign, unassign, get, list, update, rebalance |

Every response is an envelope: { status, success, operation, operation_id,
timestamp, confirmation, data?, error?, metadata?, workflow_guidance? }.
A successful response usually carries workflow_guidance.next_actions —
executable templates naming the next tool call to make.
`
