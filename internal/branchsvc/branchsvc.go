// Package branchsvc implements the Branch half of the Agent & Branch
// Services (spec.md §4.5, component C7): CRUD mirroring task CRUD at the
// branch level, plus branch statistics.
package branchsvc

import (
	"context"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Service is the C7 branch use-case implementation.
type Service struct {
	store *repository.Store
	clock clock.Clock
}

// New builds a branch service over store.
func New(store *repository.Store, c clock.Clock) *Service {
	return &Service{store: store, clock: c}
}

// CreateInput is the spec.md §4.5 branch create payload.
type CreateInput struct {
	ProjectID   ids.ProjectID
	Name        string
	Description string
	Priority    ids.Priority
}

// Create verifies the parent project exists and persists a new branch.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Branch, error) {
	exists, err := s.store.Projects.Exists(ctx, in.ProjectID)
	if err != nil {
		return nil, apperr.Classify("branch.create", err)
	}
	if !exists {
		return nil, apperr.New(apperr.CodeHierarchyViolation, "branch.create", "project does not exist")
	}
	priority := in.Priority
	if priority == "" {
		priority = ids.PriorityMedium
	}
	now := s.clock.Now()
	b := &domain.Branch{
		ID:          ids.BranchID(ids.New()),
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Description: in.Description,
		Status:      ids.EntityActive,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "branch.create", "invalid branch", err)
	}
	if err := s.store.Branches.Create(ctx, b); err != nil {
		return nil, apperr.Classify("branch.create", err)
	}
	return b, nil
}

// Get returns a branch by id.
func (s *Service) Get(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	b, err := s.store.Branches.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("branch.get", err)
	}
	return b, nil
}

// List returns every branch owned by projectID.
func (s *Service) List(ctx context.Context, projectID ids.ProjectID) ([]*domain.Branch, error) {
	branches, err := s.store.Branches.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Classify("branch.list", err)
	}
	return branches, nil
}

// Update applies a partial patch to a branch.
func (s *Service) Update(ctx context.Context, id ids.BranchID, patch domain.Doc) (*domain.Branch, error) {
	b, err := s.store.Branches.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("branch.update", err)
	}
	if v, ok := patch["name"].(string); ok {
		b.Name = v
	}
	if v, ok := patch["description"].(string); ok {
		b.Description = v
	}
	if v, ok := patch["status"].(string); ok {
		parsed, perr := ids.ParseEntityStatus(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "branch.update", "invalid status", perr)
		}
		b.Status = parsed
	}
	if v, ok := patch["priority"].(string); ok {
		parsed, perr := ids.ParsePriority(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "branch.update", "invalid priority", perr)
		}
		b.Priority = parsed
	}
	if err := b.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "branch.update", "invalid branch after update", err)
	}
	b.UpdatedAt = s.clock.Now()
	if err := s.store.Branches.Update(ctx, b); err != nil {
		return nil, apperr.Classify("branch.update", err)
	}
	return b, nil
}

// Delete removes a branch.
func (s *Service) Delete(ctx context.Context, id ids.BranchID) error {
	if err := s.store.Branches.Delete(ctx, id); err != nil {
		return apperr.Classify("branch.delete", err)
	}
	return nil
}

// Archive implements spec.md §6.1 manage_git_branch's archive action.
func (s *Service) Archive(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	b, err := s.store.Branches.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("branch.archive", err)
	}
	b.Status = ids.EntityArchived
	b.UpdatedAt = s.clock.Now()
	if err := s.store.Branches.Update(ctx, b); err != nil {
		return nil, apperr.Classify("branch.archive", err)
	}
	return b, nil
}

// Restore implements spec.md §6.1 manage_git_branch's restore action.
func (s *Service) Restore(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	b, err := s.store.Branches.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("branch.restore", err)
	}
	b.Status = ids.EntityActive
	b.UpdatedAt = s.clock.Now()
	if err := s.store.Branches.Update(ctx, b); err != nil {
		return nil, apperr.Classify("branch.restore", err)
	}
	return b, nil
}

// Statistics is the spec.md §4.5 get_statistics() response shape.
type Statistics struct {
	TaskCount          int
	CompletedTaskCount int
	InProgressTasks    int
	ProgressPercentage int
	AssignedAgentID    *ids.AgentID
	Status             ids.EntityStatus
	Priority           ids.Priority
	CreatedAt          string
	UpdatedAt          string
}

// GetStatistics implements spec.md §4.5's get_statistics(branch_id).
func (s *Service) GetStatistics(ctx context.Context, id ids.BranchID) (*Statistics, error) {
	b, err := s.store.Branches.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("branch.get_statistics", err)
	}
	tasks, err := s.store.Tasks.List(ctx, repository.TaskFilters{BranchID: &b.ID})
	if err != nil {
		return nil, apperr.Classify("branch.get_statistics", err)
	}
	completed, inProgress := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case ids.StatusDone:
			completed++
		case ids.StatusInProgress:
			inProgress++
		}
	}
	b.TaskCount = len(tasks)
	b.CompletedTaskCount = completed
	_ = s.store.Branches.Update(ctx, b)

	return &Statistics{
		TaskCount:          len(tasks),
		CompletedTaskCount: completed,
		InProgressTasks:    inProgress,
		ProgressPercentage: b.ProgressPercentage(),
		AssignedAgentID:    b.AssignedAgentID,
		Status:             b.Status,
		Priority:           b.Priority,
		CreatedAt:          b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:          b.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
