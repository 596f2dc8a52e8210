package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/mcp"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
)

var validSubtaskActions = []string{"add", "update", "complete", "remove", "get", "list"}

// ManageSubtask implements spec.md §6.1's manage_subtask tool over the C6
// subtask service.
type ManageSubtask struct {
	deps *Deps
}

// NewManageSubtask builds the manage_subtask tool.
func NewManageSubtask(deps *Deps) *ManageSubtask { return &ManageSubtask{deps: deps} }

func (t *ManageSubtask) Name() string { return "manage_subtask" }

func (t *ManageSubtask) Description() string {
	return "Add, update, complete, and remove subtasks anchored to a parent task; completing a subtask recomputes the parent's progress percentage."
}

func (t *ManageSubtask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["add", "update", "complete", "remove", "get", "list"]},
    "subtask_id": {"type": "string"},
    "task_id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "enum": ["todo", "in_progress", "review", "done", "blocked", "cancelled"]},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "assignees": {"description": "list of agent ids; accepts array, comma-separated string, or single string"},
    "progress_percentage": {"type": "integer"},
    "progress_note": {"type": "string"},
    "blocker": {"type": "string"},
    "insight": {"type": "string"},
    "completion_summary": {"type": "string"},
    "impact_on_parent": {"type": "string"}
  },
  "required": ["action"]
}`)
}

func (t *ManageSubtask) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	p, err := parseParams(raw)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	action, _ := p.str("action")
	env := t.deps.Envelope

	switch action {
	case "add":
		return t.add(ctx, p, env)
	case "update":
		return t.update(ctx, p, env)
	case "complete":
		return t.complete(ctx, p, env)
	case "remove":
		return t.remove(ctx, p, env)
	case "get":
		return t.get(ctx, p, env)
	case "list":
		return t.list(ctx, p, env)
	default:
		e := env.Failure("manage_subtask", apperr.New(apperr.CodeValidation, "manage_subtask", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validSubtaskActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageSubtask) add(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	taskIDRaw, err := p.requireStr("manage_subtask.add", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.add", err))
	}
	title, err := p.requireStr("manage_subtask.add", "title")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.add", err))
	}
	description, _ := p.str("description")
	priorityRaw, _ := p.str("priority")
	var priority ids.Priority
	if priorityRaw != "" {
		priority, err = ids.ParsePriority(priorityRaw)
		if err != nil {
			return mcp.JSONResult(env.Failure("manage_subtask.add", err))
		}
	}
	assignees, err := p.stringList("manage_subtask.add", "assignees")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.add", err))
	}
	assigneeIDs := make([]ids.AgentID, 0, len(assignees))
	for _, a := range assignees {
		assigneeIDs = append(assigneeIDs, ids.AgentID(a))
	}

	st, err := t.deps.Subtasks.Create(ctx, subtasksvc.CreateInput{
		TaskID:      ids.TaskID(taskIDRaw),
		Title:       title,
		Description: description,
		Priority:    priority,
		Assignees:   assigneeIDs,
	})
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.add", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.add", st))
}

func (t *ManageSubtask) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_subtask.update", "subtask_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.update", err))
	}
	patch := domain.Doc{}
	for _, k := range []string{"title", "description", "status", "priority", "progress_note", "blocker", "insight"} {
		if v, ok := p.str(k); ok {
			patch[k] = v
		}
	}
	if n, ok, perr := p.intField("manage_subtask.update", "progress_percentage"); perr != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.update", perr))
	} else if ok {
		patch["progress_percentage"] = n
	}
	st, err := t.deps.Subtasks.Update(ctx, ids.SubtaskID(idRaw), patch)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.update", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.update", st))
}

func (t *ManageSubtask) complete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_subtask.complete", "subtask_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.complete", err))
	}
	summary, _ := p.str("completion_summary")
	impact, _ := p.str("impact_on_parent")
	st, err := t.deps.Subtasks.Complete(ctx, ids.SubtaskID(idRaw), summary, impact)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.complete", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.complete", st))
}

func (t *ManageSubtask) remove(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_subtask.remove", "subtask_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.remove", err))
	}
	if err := t.deps.Subtasks.Delete(ctx, ids.SubtaskID(idRaw)); err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.remove", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.remove", map[string]any{"subtask_id": idRaw}))
}

func (t *ManageSubtask) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_subtask.get", "subtask_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.get", err))
	}
	st, err := t.deps.Subtasks.Get(ctx, ids.SubtaskID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.get", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.get", st))
}

func (t *ManageSubtask) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	taskIDRaw, err := p.requireStr("manage_subtask.list", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.list", err))
	}
	subs, err := t.deps.Subtasks.ListByTask(ctx, ids.TaskID(taskIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_subtask.list", err))
	}
	return mcp.JSONResult(env.Success("manage_subtask.list", subs))
}
