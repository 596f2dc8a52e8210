package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/mcp"
	"github.com/riverforge/contextmcp/internal/repository"
	"github.com/riverforge/contextmcp/internal/tasksvc"
)

// validTaskActions is surfaced on an unknown action per spec.md §6.1.
var validTaskActions = []string{
	"create", "update", "get", "delete", "complete", "list", "search", "next",
	"add_dependency", "remove_dependency",
}

// ManageTask implements spec.md §6.1's manage_task tool over the C5 task
// lifecycle service.
type ManageTask struct {
	deps *Deps
}

// NewManageTask builds the manage_task tool.
func NewManageTask(deps *Deps) *ManageTask { return &ManageTask{deps: deps} }

func (t *ManageTask) Name() string { return "manage_task" }

func (t *ManageTask) Description() string {
	return "Create, update, inspect, and complete tasks within a branch, including dependency management and next-actionable-task selection."
}

func (t *ManageTask) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["create", "update", "get", "delete", "complete", "list", "search", "next", "add_dependency", "remove_dependency"]},
    "task_id": {"type": "string"},
    "branch_id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "enum": ["todo", "in_progress", "review", "done", "blocked", "cancelled"]},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "details": {"type": "string"},
    "estimated_effort": {"type": "string"},
    "due_date": {"type": "string"},
    "assignees": {"description": "list of agent ids; accepts array, comma-separated string, or single string"},
    "labels": {"description": "list of labels; accepts array, comma-separated string, or single string"},
    "dependencies": {"description": "list of task ids; accepts array, comma-separated string, or single string"},
    "dependency_id": {"type": "string"},
    "include_dependencies": {"description": "accepts bool or string variant"},
    "completion_summary": {"type": "string"},
    "testing_notes": {"type": "string"},
    "query": {"type": "string"},
    "limit": {"description": "integer 1-100; accepts int or numeric string"}
  },
  "required": ["action"]
}`)
}

func (t *ManageTask) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	p, err := parseParams(raw)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	action, _ := p.str("action")
	env := t.deps.Envelope

	switch action {
	case "create":
		return t.create(ctx, p, env)
	case "update":
		return t.update(ctx, p, env)
	case "get":
		return t.get(ctx, p, env)
	case "delete":
		return t.delete(ctx, p, env)
	case "complete":
		return t.complete(ctx, p, env)
	case "list":
		return t.list(ctx, p, env)
	case "search":
		return t.search(ctx, p, env)
	case "next":
		return t.next(ctx, p, env)
	case "add_dependency":
		return t.addDependency(ctx, p, env)
	case "remove_dependency":
		return t.removeDependency(ctx, p, env)
	default:
		e := env.Failure("manage_task", apperr.New(apperr.CodeValidation, "manage_task", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validTaskActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageTask) create(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	title, err := p.requireStr("manage_task.create", "title")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	branchIDRaw, err := p.requireStr("manage_task.create", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	assignees, err := p.stringList("manage_task.create", "assignees")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	labels, err := p.stringList("manage_task.create", "labels")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	deps, err := p.stringList("manage_task.create", "dependencies")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	description, _ := p.str("description")
	statusRaw, _ := p.str("status")
	priorityRaw, _ := p.str("priority")
	details, _ := p.str("details")
	effort, _ := p.str("estimated_effort")

	var status ids.TaskStatus
	if statusRaw != "" {
		status, err = ids.ParseTaskStatus(statusRaw)
		if err != nil {
			return mcp.JSONResult(env.Failure("manage_task.create", err))
		}
	}
	var priority ids.Priority
	if priorityRaw != "" {
		priority, err = ids.ParsePriority(priorityRaw)
		if err != nil {
			return mcp.JSONResult(env.Failure("manage_task.create", err))
		}
	}

	var dueDate *time.Time
	if raw, ok := p.str("due_date"); ok && raw != "" {
		parsed, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return mcp.JSONResult(env.Failure("manage_task.create", coerceErr("manage_task.create", "due_date", "an RFC3339 timestamp", raw, "could not parse timestamp")))
		}
		dueDate = &parsed
	}

	assigneeIDs := make([]ids.AgentID, 0, len(assignees))
	for _, a := range assignees {
		assigneeIDs = append(assigneeIDs, ids.AgentID(a))
	}
	depIDs := make([]ids.TaskID, 0, len(deps))
	for _, d := range deps {
		depIDs = append(depIDs, ids.TaskID(d))
	}

	task, err := t.deps.Tasks.Create(ctx, tasksvc.CreateInput{
		BranchID:        ids.BranchID(branchIDRaw),
		Title:           title,
		Description:     description,
		Status:          status,
		Priority:        priority,
		Details:         details,
		EstimatedEffort: effort,
		Assignees:       assigneeIDs,
		Labels:          labels,
		DueDate:         dueDate,
		Dependencies:    depIDs,
	})
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.create", err))
	}
	e := env.Success("manage_task.create", task)
	return mcp.JSONResult(e)
}

func (t *ManageTask) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.update", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.update", err))
	}
	for k, v := range p {
		switch k {
		case "action", "task_id", "title", "description", "status", "priority", "details", "estimated_effort", "progress_percentage":
		default:
			return mcp.JSONResult(env.Failure("manage_task.update",
				coerceErr("manage_task.update", k, "a field manage_task update accepts", v, "unknown fields are rejected")))
		}
	}
	patch := domain.Doc{}
	for _, k := range []string{"title", "description", "status", "priority", "details", "estimated_effort"} {
		if v, ok := p.str(k); ok {
			patch[k] = v
		}
	}
	if n, ok, perr := p.intField("manage_task.update", "progress_percentage"); perr != nil {
		return mcp.JSONResult(env.Failure("manage_task.update", perr))
	} else if ok {
		patch["progress_percentage"] = n
	}
	result, err := t.deps.Tasks.Update(ctx, ids.TaskID(idRaw), patch)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.update", err))
	}
	e := env.Success("manage_task.update", result.Task)
	if result.ProgressReported {
		e = env.WithMetadata(e, map[string]any{"progress_reported": true})
	}
	return mcp.JSONResult(e)
}

func (t *ManageTask) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.get", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.get", err))
	}
	var warnings []string
	includeDeps := p.boolField("include_dependencies", &warnings)
	task, info, err := t.deps.Tasks.Get(ctx, ids.TaskID(idRaw), includeDeps)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.get", err))
	}
	data := map[string]any{"task": task}
	if info != nil {
		data["dependency_info"] = info
	}
	e := env.Success("manage_task.get", data)
	return mcp.JSONResult(e)
}

func (t *ManageTask) delete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.delete", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.delete", err))
	}
	if err := t.deps.Tasks.Delete(ctx, ids.TaskID(idRaw)); err != nil {
		return mcp.JSONResult(env.Failure("manage_task.delete", err))
	}
	return mcp.JSONResult(env.Success("manage_task.delete", map[string]any{"task_id": idRaw}))
}

func (t *ManageTask) complete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.complete", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.complete", err))
	}
	summary, _ := p.str("completion_summary")
	testingNotes, _ := p.str("testing_notes")
	task, err := t.deps.Tasks.Complete(ctx, ids.TaskID(idRaw), summary, testingNotes)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.complete", err))
	}
	return mcp.JSONResult(env.Success("manage_task.complete", task))
}

func (t *ManageTask) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	limit, err := p.limitField("manage_task.list", 20)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.list", err))
	}
	f := repository.TaskFilters{Limit: limit}
	if v, ok := p.str("branch_id"); ok {
		bid := ids.BranchID(v)
		f.BranchID = &bid
	}
	if v, ok := p.str("status"); ok {
		st, perr := ids.ParseTaskStatus(v)
		if perr != nil {
			return mcp.JSONResult(env.Failure("manage_task.list", perr))
		}
		f.Status = []ids.TaskStatus{st}
	}
	labels, err := p.stringList("manage_task.list", "labels")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.list", err))
	}
	f.Labels = labels
	tasks, err := t.deps.Tasks.List(ctx, f)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.list", err))
	}
	return mcp.JSONResult(env.Success("manage_task.list", tasks))
}

func (t *ManageTask) search(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	query, err := p.requireStr("manage_task.search", "query")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.search", err))
	}
	limit, err := p.limitField("manage_task.search", 20)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.search", err))
	}
	var branchID *ids.BranchID
	if v, ok := p.str("branch_id"); ok {
		bid := ids.BranchID(v)
		branchID = &bid
	}
	tasks, err := t.deps.Tasks.Search(ctx, query, branchID, limit)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.search", err))
	}
	return mcp.JSONResult(env.Success("manage_task.search", tasks))
}

func (t *ManageTask) next(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	branchIDRaw, err := p.requireStr("manage_task.next", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.next", err))
	}
	task, err := t.deps.Tasks.Next(ctx, ids.BranchID(branchIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.next", err))
	}
	return mcp.JSONResult(env.Success("manage_task.next", task))
}

func (t *ManageTask) addDependency(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.add_dependency", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.add_dependency", err))
	}
	depRaw, err := p.requireStr("manage_task.add_dependency", "dependency_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.add_dependency", err))
	}
	task, err := t.deps.Tasks.AddDependency(ctx, ids.TaskID(idRaw), ids.TaskID(depRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.add_dependency", err))
	}
	return mcp.JSONResult(env.Success("manage_task.add_dependency", task))
}

func (t *ManageTask) removeDependency(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_task.remove_dependency", "task_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.remove_dependency", err))
	}
	depRaw, err := p.requireStr("manage_task.remove_dependency", "dependency_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.remove_dependency", err))
	}
	task, err := t.deps.Tasks.RemoveDependency(ctx, ids.TaskID(idRaw), ids.TaskID(depRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_task.remove_dependency", err))
	}
	return mcp.JSONResult(env.Success("manage_task.remove_dependency", task))
}
