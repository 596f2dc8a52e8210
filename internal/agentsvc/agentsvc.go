// Package agentsvc implements the Agent half of the Agent & Branch Services
// (spec.md §4.5, component C7): idempotent registration, branch assignment/
// unassignment, and advisory rebalancing.
package agentsvc

import (
	"context"
	"sort"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Service is the C7 agent use-case implementation.
type Service struct {
	store *repository.Store
	clock clock.Clock
}

// New builds an agent service over store.
func New(store *repository.Store, c clock.Clock) *Service {
	return &Service{store: store, clock: c}
}

// RegisterInput is the spec.md §4.5 agent registration payload.
type RegisterInput struct {
	ID                 ids.AgentID
	ProjectID          ids.ProjectID
	Name               string
	Description        string
	Capabilities       []ids.Capability
	MaxConcurrentTasks int
}

// Register implements spec.md §4.5's "idempotent by (project_id, agent_id)"
// registration: returns the existing agent unchanged if already registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Agent, error) {
	if existing, err := s.store.Agents.Get(ctx, in.ID); err == nil && existing.ProjectID == in.ProjectID {
		return existing, nil
	}
	maxTasks := in.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}
	a := &domain.Agent{
		ID:                 in.ID,
		ProjectID:          in.ProjectID,
		Name:               in.Name,
		Description:        in.Description,
		Capabilities:       in.Capabilities,
		Status:             ids.AgentAvailable,
		MaxConcurrentTasks: maxTasks,
	}
	if err := a.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "agent.register", "invalid agent", err)
	}
	if err := s.store.Agents.Create(ctx, a); err != nil {
		return nil, apperr.Classify("agent.register", err)
	}
	return a, nil
}

// Get returns an agent by id.
func (s *Service) Get(ctx context.Context, id ids.AgentID) (*domain.Agent, error) {
	a, err := s.store.Agents.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("agent.get", err)
	}
	return a, nil
}

// List returns every agent registered to projectID.
func (s *Service) List(ctx context.Context, projectID ids.ProjectID) ([]*domain.Agent, error) {
	agents, err := s.store.Agents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Classify("agent.list", err)
	}
	return agents, nil
}

// Unregister removes an agent's registration entirely.
func (s *Service) Unregister(ctx context.Context, id ids.AgentID) error {
	if err := s.store.Agents.Delete(ctx, id); err != nil {
		return apperr.Classify("agent.unregister", err)
	}
	return nil
}

// Update applies a partial patch to an agent.
func (s *Service) Update(ctx context.Context, id ids.AgentID, patch domain.Doc) (*domain.Agent, error) {
	a, err := s.store.Agents.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("agent.update", err)
	}
	if v, ok := patch["name"].(string); ok {
		a.Name = v
	}
	if v, ok := patch["description"].(string); ok {
		a.Description = v
	}
	if v, ok := patch["status"].(string); ok {
		parsed, perr := parseAgentStatus(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "agent.update", "invalid status", perr)
		}
		a.Status = parsed
	}
	if v, ok := patch["max_concurrent_tasks"]; ok {
		if n, ok := v.(int); ok {
			a.MaxConcurrentTasks = n
		}
	}
	if err := a.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "agent.update", "invalid agent after update", err)
	}
	if err := s.store.Agents.Update(ctx, a); err != nil {
		return nil, apperr.Classify("agent.update", err)
	}
	return a, nil
}

func parseAgentStatus(raw string) (ids.AgentStatus, error) {
	switch ids.AgentStatus(raw) {
	case ids.AgentAvailable, ids.AgentBusy, ids.AgentPaused, ids.AgentOffline:
		return ids.AgentStatus(raw), nil
	default:
		return "", ids.NewValidationError("status", "unknown agent status: "+raw)
	}
}

// AssignToBranch implements spec.md §4.5's assignment rule: auto-registers
// the agent if missing, appends branchID to assigned_trees, and binds
// branch.assigned_agent_id.
func (s *Service) AssignToBranch(ctx context.Context, agentID ids.AgentID, projectID ids.ProjectID, branchID ids.BranchID) (*domain.Agent, error) {
	branch, err := s.store.Branches.Get(ctx, branchID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeHierarchyViolation, "agent.assign", "branch does not exist", err)
	}

	a, err := s.store.Agents.Get(ctx, agentID)
	if err != nil {
		a, err = s.Register(ctx, RegisterInput{ID: agentID, ProjectID: projectID, Name: string(agentID)})
		if err != nil {
			return nil, err
		}
	}

	alreadyAssigned := false
	for _, b := range a.AssignedTrees {
		if b == branchID {
			alreadyAssigned = true
			break
		}
	}
	if !alreadyAssigned {
		a.AssignedTrees = append(a.AssignedTrees, branchID)
	}
	if err := s.store.Agents.Update(ctx, a); err != nil {
		return nil, apperr.Classify("agent.assign", err)
	}

	branch.AssignedAgentID = &agentID
	if err := s.store.Branches.Update(ctx, branch); err != nil {
		return nil, apperr.Classify("agent.assign", err)
	}
	return a, nil
}

// UnassignFromBranch removes branchID from the agent's assigned_trees and
// clears the branch's assigned_agent_id binding.
func (s *Service) UnassignFromBranch(ctx context.Context, agentID ids.AgentID, branchID ids.BranchID) (*domain.Agent, error) {
	a, err := s.store.Agents.Get(ctx, agentID)
	if err != nil {
		return nil, apperr.Classify("agent.unassign", err)
	}
	kept := a.AssignedTrees[:0:0]
	for _, b := range a.AssignedTrees {
		if b != branchID {
			kept = append(kept, b)
		}
	}
	a.AssignedTrees = kept
	if err := s.store.Agents.Update(ctx, a); err != nil {
		return nil, apperr.Classify("agent.unassign", err)
	}

	if branch, berr := s.store.Branches.Get(ctx, branchID); berr == nil {
		if branch.AssignedAgentID != nil && *branch.AssignedAgentID == agentID {
			branch.AssignedAgentID = nil
			_ = s.store.Branches.Update(ctx, branch)
		}
	}
	return a, nil
}

// RebalanceSuggestion is one advisory line of a rebalance() response.
type RebalanceSuggestion struct {
	AgentID         ids.AgentID
	CurrentWorkload int
	Capacity        int
	Recommendation  string
}

// Rebalance implements spec.md §4.5's advisory rebalance: it inspects
// workloads but never forcibly reassigns anything.
func (s *Service) Rebalance(ctx context.Context, projectID ids.ProjectID) ([]RebalanceSuggestion, error) {
	agents, err := s.store.Agents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Classify("agent.rebalance", err)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	var suggestions []RebalanceSuggestion
	for _, a := range agents {
		rec := "balanced"
		if a.MaxConcurrentTasks > 0 {
			if a.CurrentWorkload >= a.MaxConcurrentTasks {
				rec = "overloaded: consider reassigning new work elsewhere"
			} else if a.CurrentWorkload == 0 {
				rec = "idle: eligible for new assignment"
			}
		}
		suggestions = append(suggestions, RebalanceSuggestion{
			AgentID:         a.ID,
			CurrentWorkload: a.CurrentWorkload,
			Capacity:        a.MaxConcurrentTasks,
			Recommendation:  rec,
		})
	}
	return suggestions, nil
}
