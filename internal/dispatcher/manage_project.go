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
	"github.com/riverforge/contextmcp/internal/projectsvc"
)

var validProjectActions = []string{"create", "update", "get", "delete", "list"}

// ManageProject implements spec.md §6.1's manage_project tool over the
// top-level project CRUD service.
type ManageProject struct {
	deps *Deps
}

// NewManageProject builds the manage_project tool.
func NewManageProject(deps *Deps) *ManageProject { return &ManageProject{deps: deps} }

func (t *ManageProject) Name() string { return "manage_project" }

func (t *ManageProject) Description() string {
	return "Create, update, inspect, list, and delete projects — the top level of the hierarchy."
}

func (t *ManageProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["create", "update", "get", "delete", "list"]},
    "project_id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string", "enum": ["active", "paused", "archived"]}
  },
  "required": ["action"]
}`)
}

func (t *ManageProject) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
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
	case "list":
		return t.list(ctx, p, env)
	default:
		e := env.Failure("manage_project", apperr.New(apperr.CodeValidation, "manage_project", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validProjectActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageProject) create(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	name, err := p.requireStr("manage_project.create", "name")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.create", err))
	}
	description, _ := p.str("description")
	userID, _ := p.str("user_id")
	proj, err := t.deps.Projects.Create(ctx, projectsvc.CreateInput{Name: name, Description: description, UserID: userID})
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.create", err))
	}
	return mcp.JSONResult(env.Success("manage_project.create", proj))
}

func (t *ManageProject) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_project.update", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.update", err))
	}
	patch := domain.Doc{}
	for _, k := range []string{"name", "description", "status"} {
		if v, ok := p.str(k); ok {
			patch[k] = v
		}
	}
	proj, err := t.deps.Projects.Update(ctx, ids.ProjectID(idRaw), patch)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.update", err))
	}
	return mcp.JSONResult(env.Success("manage_project.update", proj))
}

func (t *ManageProject) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_project.get", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.get", err))
	}
	proj, err := t.deps.Projects.Get(ctx, ids.ProjectID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.get", err))
	}
	return mcp.JSONResult(env.Success("manage_project.get", proj))
}

func (t *ManageProject) delete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_project.delete", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.delete", err))
	}
	if err := t.deps.Projects.Delete(ctx, ids.ProjectID(idRaw)); err != nil {
		return mcp.JSONResult(env.Failure("manage_project.delete", err))
	}
	return mcp.JSONResult(env.Success("manage_project.delete", map[string]any{"project_id": idRaw}))
}

func (t *ManageProject) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	projects, err := t.deps.Projects.List(ctx)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_project.list", err))
	}
	return mcp.JSONResult(env.Success("manage_project.list", projects))
}
