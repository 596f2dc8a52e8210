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
	"github.com/riverforge/contextmcp/internal/repository"
)

var validContextActions = []string{
	"create", "get", "update", "delete", "resolve", "list", "delegate", "add_insight", "add_progress",
}

// ManageContext implements spec.md §6.1's manage_context tool over the C4
// hierarchical context engine.
type ManageContext struct {
	deps *Deps
}

// NewManageContext builds the manage_context tool.
func NewManageContext(deps *Deps) *ManageContext { return &ManageContext{deps: deps} }

func (t *ManageContext) Name() string { return "manage_context" }

func (t *ManageContext) Description() string {
	return "Create, read, update, resolve (with inheritance), delegate, and annotate the context document attached to a global/project/branch/task entity."
}

func (t *ManageContext) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["create", "get", "update", "delete", "resolve", "list", "delegate", "add_insight", "add_progress"]},
    "level": {"type": "string", "enum": ["global", "project", "branch", "task"]},
    "context_id": {"type": "string"},
    "project_id": {"type": "string"},
    "branch_id": {"type": "string"},
    "user_id": {"type": "string"},
    "data": {"type": "object", "description": "context document payload, merged via deep-merge on update"},
    "include_inherited": {"description": "accepts bool or string variant"},
    "force_refresh": {"description": "accepts bool or string variant"},
    "propagate": {"description": "accepts bool or string variant"},
    "target_level": {"type": "string", "enum": ["global", "project", "branch"]},
    "reason": {"type": "string"},
    "content": {"type": "string"},
    "category": {"type": "string"},
    "importance": {"type": "string"},
    "agent": {"type": "string"}
  },
  "required": ["action", "level"]
}`)
}

func (t *ManageContext) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	p, err := parseParams(raw)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	action, _ := p.str("action")
	env := t.deps.Envelope

	switch action {
	case "create":
		return t.create(ctx, p, env)
	case "get":
		return t.get(ctx, p, env)
	case "update":
		return t.update(ctx, p, env)
	case "delete":
		return t.delete(ctx, p, env)
	case "resolve":
		return t.resolve(ctx, p, env)
	case "list":
		return t.list(ctx, p, env)
	case "delegate":
		return t.delegate(ctx, p, env)
	case "add_insight":
		return t.addInsight(ctx, p, env)
	case "add_progress":
		return t.addProgress(ctx, p, env)
	default:
		e := env.Failure("manage_context", apperr.New(apperr.CodeValidation, "manage_context", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validContextActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageContext) levelAndID(p params, operation string) (ids.Level, ids.ContextID, error) {
	levelRaw, err := p.requireStr(operation, "level")
	if err != nil {
		return "", "", err
	}
	level, perr := ids.ParseLevel(levelRaw)
	if perr != nil {
		return "", "", perr
	}
	idRaw, _ := p.str("context_id")
	if level == ids.LevelGlobal && idRaw == "" {
		idRaw = ids.GlobalSingletonID
	}
	if idRaw == "" {
		return "", "", apperr.New(apperr.CodeValidation, operation, "context_id is required for non-global levels")
	}
	return level, ids.ContextID(idRaw), nil
}

func (t *ManageContext) create(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.create")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.create", err))
	}
	data := domain.Doc(p.docField("data"))
	var userID, projectID *string
	if v, ok := p.str("user_id"); ok {
		userID = &v
	}
	if v, ok := p.str("project_id"); ok {
		projectID = &v
	}
	rec, err := t.deps.Contexts.Create(ctx, level, id, data, userID, projectID)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.create", err))
	}
	return mcp.JSONResult(env.Success("manage_context.create", rec))
}

func (t *ManageContext) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.get")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.get", err))
	}
	var warnings []string
	includeInherited := p.boolField("include_inherited", &warnings)
	forceRefresh := p.boolField("force_refresh", &warnings)
	rec, meta, err := t.deps.Contexts.Get(ctx, level, id, includeInherited, forceRefresh)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.get", err))
	}
	data := map[string]any{"context": rec}
	if meta != nil {
		data["_inheritance"] = meta
	}
	return mcp.JSONResult(env.Success("manage_context.get", data))
}

func (t *ManageContext) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.update")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.update", err))
	}
	data := domain.Doc(p.docField("data"))
	var warnings []string
	propagate := p.boolField("propagate", &warnings)
	rec, err := t.deps.Contexts.Update(ctx, level, id, data, propagate)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.update", err))
	}
	return mcp.JSONResult(env.Success("manage_context.update", rec))
}

func (t *ManageContext) delete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.delete")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.delete", err))
	}
	if err := t.deps.Contexts.Delete(ctx, level, id); err != nil {
		return mcp.JSONResult(env.Failure("manage_context.delete", err))
	}
	return mcp.JSONResult(env.Success("manage_context.delete", map[string]any{"level": level, "context_id": id}))
}

func (t *ManageContext) resolve(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.resolve")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.resolve", err))
	}
	var warnings []string
	forceRefresh := p.boolField("force_refresh", &warnings)
	rec, meta, err := t.deps.Contexts.Resolve(ctx, level, id, forceRefresh)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.resolve", err))
	}
	return mcp.JSONResult(env.Success("manage_context.resolve", map[string]any{"context": rec, "_inheritance": meta, "resolved": true}))
}

func (t *ManageContext) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	levelRaw, err := p.requireStr("manage_context.list", "level")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.list", err))
	}
	level, perr := ids.ParseLevel(levelRaw)
	if perr != nil {
		return mcp.JSONResult(env.Failure("manage_context.list", perr))
	}
	f := repository.ContextFilters{}
	if v, ok := p.str("project_id"); ok {
		pid := ids.ProjectID(v)
		f.ProjectID = &pid
	}
	if v, ok := p.str("branch_id"); ok {
		bid := ids.BranchID(v)
		f.BranchID = &bid
	}
	recs, err := t.deps.Contexts.List(ctx, level, f)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.list", err))
	}
	return mcp.JSONResult(env.Success("manage_context.list", recs))
}

func (t *ManageContext) delegate(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.delegate")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.delegate", err))
	}
	targetLevelRaw, err := p.requireStr("manage_context.delegate", "target_level")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.delegate", err))
	}
	targetLevel, perr := ids.ParseLevel(targetLevelRaw)
	if perr != nil {
		return mcp.JSONResult(env.Failure("manage_context.delegate", perr))
	}
	data := domain.Doc(p.docField("data"))
	reason, _ := p.str("reason")
	d, err := t.deps.Contexts.Delegate(ctx, level, id, targetLevel, data, reason)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.delegate", err))
	}
	return mcp.JSONResult(env.Success("manage_context.delegate", d))
}

func (t *ManageContext) addInsight(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.add_insight")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_insight", err))
	}
	content, err := p.requireStr("manage_context.add_insight", "content")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_insight", err))
	}
	category, _ := p.str("category")
	importance, _ := p.str("importance")
	agent, _ := p.str("agent")
	rec, err := t.deps.Contexts.AddInsight(ctx, level, id, content, category, importance, agent)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_insight", err))
	}
	return mcp.JSONResult(env.Success("manage_context.add_insight", rec))
}

func (t *ManageContext) addProgress(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	level, id, err := t.levelAndID(p, "manage_context.add_progress")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_progress", err))
	}
	content, err := p.requireStr("manage_context.add_progress", "content")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_progress", err))
	}
	agent, _ := p.str("agent")
	rec, err := t.deps.Contexts.AddProgress(ctx, level, id, content, agent)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_context.add_progress", err))
	}
	return mcp.JSONResult(env.Success("manage_context.add_progress", rec))
}
