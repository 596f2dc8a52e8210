package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/mcp"
)

var validAgentActions = []string{"register", "unregister", "assign", "unassign", "get", "list", "update", "rebalance"}

// ManageAgent implements spec.md §6.1's manage_agent tool over the C7 agent
// service.
type ManageAgent struct {
	deps *Deps
}

// NewManageAgent builds the manage_agent tool.
func NewManageAgent(deps *Deps) *ManageAgent { return &ManageAgent{deps: deps} }

func (t *ManageAgent) Name() string { return "manage_agent" }

func (t *ManageAgent) Description() string {
	return "Register, unregister, assign/unassign to branches, inspect, and advisory-rebalance autonomous agents within a project."
}

func (t *ManageAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["register", "unregister", "assign", "unassign", "get", "list", "update", "rebalance"]},
    "agent_id": {"type": "string"},
    "project_id": {"type": "string"},
    "branch_id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "capabilities": {"description": "list of capability tags; accepts array, comma-separated string, or single string"},
    "max_concurrent_tasks": {"description": "integer; accepts int or numeric string"},
    "status": {"type": "string", "enum": ["available", "busy", "paused", "offline"]}
  },
  "required": ["action"]
}`)
}

func (t *ManageAgent) Execute(ctx context.Context, raw json.RawMessage) (*mcp.ToolsCallResult, error) {
	p, err := parseParams(raw)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	action, _ := p.str("action")
	env := t.deps.Envelope

	switch action {
	case "register":
		return t.register(ctx, p, env)
	case "unregister":
		return t.unregister(ctx, p, env)
	case "assign":
		return t.assign(ctx, p, env)
	case "unassign":
		return t.unassign(ctx, p, env)
	case "get":
		return t.get(ctx, p, env)
	case "list":
		return t.list(ctx, p, env)
	case "update":
		return t.update(ctx, p, env)
	case "rebalance":
		return t.rebalance(ctx, p, env)
	default:
		e := env.Failure("manage_agent", apperr.New(apperr.CodeValidation, "manage_agent", fmt.Sprintf("unknown action %q", action)))
		e = env.WithMetadata(e, map[string]any{"valid_actions": validAgentActions})
		return mcp.JSONResult(e)
	}
}

func (t *ManageAgent) register(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	agentIDRaw, err := p.requireStr("manage_agent.register", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.register", err))
	}
	projectIDRaw, err := p.requireStr("manage_agent.register", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.register", err))
	}
	name, _ := p.str("name")
	description, _ := p.str("description")
	capRaw, err := p.stringList("manage_agent.register", "capabilities")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.register", err))
	}
	caps := make([]ids.Capability, 0, len(capRaw))
	for _, c := range capRaw {
		parsed, perr := ids.ParseCapability(c)
		if perr != nil {
			return mcp.JSONResult(env.Failure("manage_agent.register", perr))
		}
		caps = append(caps, parsed)
	}
	maxTasks, _, err := p.intField("manage_agent.register", "max_concurrent_tasks")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.register", err))
	}
	a, err := t.deps.Agents.Register(ctx, agentsvc.RegisterInput{
		ID:                 ids.AgentID(agentIDRaw),
		ProjectID:          ids.ProjectID(projectIDRaw),
		Name:               name,
		Description:        description,
		Capabilities:       caps,
		MaxConcurrentTasks: maxTasks,
	})
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.register", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.register", a))
}

func (t *ManageAgent) unregister(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_agent.unregister", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.unregister", err))
	}
	if err := t.deps.Agents.Unregister(ctx, ids.AgentID(idRaw)); err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.unregister", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.unregister", map[string]any{"agent_id": idRaw}))
}

func (t *ManageAgent) assign(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	agentIDRaw, err := p.requireStr("manage_agent.assign", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.assign", err))
	}
	branchIDRaw, err := p.requireStr("manage_agent.assign", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.assign", err))
	}
	projectIDRaw, _ := p.str("project_id")
	a, err := t.deps.Agents.AssignToBranch(ctx, ids.AgentID(agentIDRaw), ids.ProjectID(projectIDRaw), ids.BranchID(branchIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.assign", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.assign", a))
}

func (t *ManageAgent) unassign(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	agentIDRaw, err := p.requireStr("manage_agent.unassign", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.unassign", err))
	}
	branchIDRaw, err := p.requireStr("manage_agent.unassign", "branch_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.unassign", err))
	}
	a, err := t.deps.Agents.UnassignFromBranch(ctx, ids.AgentID(agentIDRaw), ids.BranchID(branchIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.unassign", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.unassign", a))
}

func (t *ManageAgent) get(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_agent.get", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.get", err))
	}
	a, err := t.deps.Agents.Get(ctx, ids.AgentID(idRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.get", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.get", a))
}

func (t *ManageAgent) list(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	projectIDRaw, err := p.requireStr("manage_agent.list", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.list", err))
	}
	agents, err := t.deps.Agents.List(ctx, ids.ProjectID(projectIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.list", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.list", agents))
}

func (t *ManageAgent) update(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	idRaw, err := p.requireStr("manage_agent.update", "agent_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.update", err))
	}
	patch := domain.Doc{}
	for _, k := range []string{"name", "description", "status"} {
		if v, ok := p.str(k); ok {
			patch[k] = v
		}
	}
	if n, ok, perr := p.intField("manage_agent.update", "max_concurrent_tasks"); perr != nil {
		return mcp.JSONResult(env.Failure("manage_agent.update", perr))
	} else if ok {
		patch["max_concurrent_tasks"] = n
	}
	a, err := t.deps.Agents.Update(ctx, ids.AgentID(idRaw), patch)
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.update", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.update", a))
}

func (t *ManageAgent) rebalance(ctx context.Context, p params, env *envelope.Builder) (*mcp.ToolsCallResult, error) {
	projectIDRaw, err := p.requireStr("manage_agent.rebalance", "project_id")
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.rebalance", err))
	}
	suggestions, err := t.deps.Agents.Rebalance(ctx, ids.ProjectID(projectIDRaw))
	if err != nil {
		return mcp.JSONResult(env.Failure("manage_agent.rebalance", err))
	}
	return mcp.JSONResult(env.Success("manage_agent.rebalance", suggestions))
}
