package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/branchsvc"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/mcp"
)

var validBranchActions = []string{
	"create", "get", "list", "update", "delete", "assign_agent", "unassign_agent", "get_statistics", "archive", "restore",
}

// ManageGitBranch implements spec.md §6.1's manage_git_branch tool over the
// C7 branch service (named "git_branch" per the spec's terminology for a
// unit of work within a project, see SPEC_FULL.md glossary).
type ManageGitBranch struct {
	deps *Deps
}

// NewManageGitBranch builds the manage_git_branch tool.
func NewManageGitBranch(deps *Deps) *ManageGitBranch { return &ManageGitBranch{deps: deps} }

func (t *ManageGitBranch) Name() string { return "manage_git_branch" }

func (t *ManageGitBranch) Description() string {
	return "Create, update, list, delete, archive/restore branches within a project, including agent assignment and live progress statistics."
}

func (t *ManageGitBranch) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["create", "get", "list", "update", "delete", "assign_agent", "unassign_agent", "get_statistics", "archive", "restore"]},
    "branch_id": {"type": "string"},
    "project_id": {"type": "string"},
    "agent_id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "enum": ["active", "paused", "archived"]},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "critical"]}
  },
  "required": ["action"]
}`)
}

func (t *ManageGitBranch) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
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
	case "list":
		return t.list(ctx, p, env)
	case "update":
		return t.update(ctx, p, env)
	case "delete":
		return t.delete(ctx, p, env)
	case "assign_agent":
		return t.assignAgent(ctx, p, env)
	case "unassign_agent":
		return t.unassignAgent(ctx, p, env)
	case "get_statistics":
		return t.getStatistics(ctx, p, env)
	case "archive":
		return t.archive(ctx, p, env)
	case "restore":
		return t.restore(ctx, p, env)
	default:
		e := env.Failure("manage_git_branch", apperr.New(apperr.CodeValidation, "manage_git_branch", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validBranchActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageGitBranch) create(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	projectIDRaw, err := p.requireStr("manage_git_branch.create", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.create", err))
	}
	name, err := p.requireStr("manage_git_branch.create", "name")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.create", err))
	}
	description, _ := p.str("description")
	priorityRaw, _ := p.str("priority")
	var priority ids.Priority
	if priorityRaw != "" {
		priority, err = ids.ParsePriority(priorityRaw)
		if err != nil {
			return mcp.JSONResult(env.Failure("manage_git_branch.create", err))
		}
	}
	b, err := t.deps.Branches.Create(ctx, branchsvc.CreateInput{
		ProjectID:   ids.ProjectID(projectIDRaw),
		Name:        name,
		Description: description,
		Priority:    priority,
	})
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.create", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.create", b))
}

func (t *ManageGitBranch) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.get", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.get", err))
	}
	b, err := t.deps.Branches.Get(ctx, ids.BranchID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.get", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.get", b))
}

func (t *ManageGitBranch) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	projectIDRaw, err := p.requireStr("manage_git_branch.list", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.list", err))
	}
	branches, err := t.deps.Branches.List(ctx, ids.ProjectID(projectIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.list", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.list", branches))
}

func (t *ManageGitBranch) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.update", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.update", err))
	}
	patch := domain.Doc{}
	for _, k := range []string{"name", "description", "status", "priority"} {
		if v, ok := p.str(k); ok {
			patch[k] = v
		}
	}
	b, err := t.deps.Branches.Update(ctx, ids.BranchID(idRaw), patch)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.update", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.update", b))
}

func (t *ManageGitBranch) delete(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.delete", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.delete", err))
	}
	if err := t.deps.Branches.Delete(ctx, ids.BranchID(idRaw)); err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.delete", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.delete", map[string]any{"branch_id": idRaw}))
}

func (t *ManageGitBranch) assignAgent(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	branchIDRaw, err := p.requireStr("manage_git_branch.assign_agent", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.assign_agent", err))
	}
	agentIDRaw, err := p.requireStr("manage_git_branch.assign_agent", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.assign_agent", err))
	}
	projectIDRaw, _ := p.str("project_id")
	a, err := t.deps.Agents.AssignToBranch(ctx, ids.AgentID(agentIDRaw), ids.ProjectID(projectIDRaw), ids.BranchID(branchIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.assign_agent", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.assign_agent", a))
}

func (t *ManageGitBranch) unassignAgent(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	branchIDRaw, err := p.requireStr("manage_git_branch.unassign_agent", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.unassign_agent", err))
	}
	agentIDRaw, err := p.requireStr("manage_git_branch.unassign_agent", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.unassign_agent", err))
	}
	a, err := t.deps.Agents.UnassignFromBranch(ctx, ids.AgentID(agentIDRaw), ids.BranchID(branchIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.unassign_agent", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.unassign_agent", a))
}

func (t *ManageGitBranch) getStatistics(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.get_statistics", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.get_statistics", err))
	}
	stats, err := t.deps.Branches.GetStatistics(ctx, ids.BranchID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.get_statistics", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.get_statistics", stats))
}

func (t *ManageGitBranch) archive(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.archive", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.archive", err))
	}
	b, err := t.deps.Branches.Archive(ctx, ids.BranchID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.archive", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.archive", b))
}

func (t *ManageGitBranch) restore(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_git_branch.restore", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.restore", err))
	}
	b, err := t.deps.Branches.Restore(ctx, ids.BranchID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_git_branch.restore", err))
	}
	return mcp.JSONResult(env.Success("manage_git_branch.restore", b))
}
