// Package projectsvc implements CRUD for the top hierarchy level, Project
// (spec.md §3.1, §6.1 manage_project). It has no dedicated component number
// in spec.md §4 — it mirrors branchsvc's CRUD shape one level up.
package projectsvc

import (
	"context"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Service is the project CRUD use-case implementation.
type Service struct {
	store *repository.Store
	clock clock.Clock
}

// New builds a project service over store.
func New(store *repository.Store, c clock.Clock) *Service {
	return &Service{store: store, clock: c}
}

// CreateInput is the spec.md §6.1 manage_project create payload.
type CreateInput struct {
	Name        string
	Description string
	UserID      string
}

// Create persists a new project.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Project, error) {
	now := s.clock.Now()
	p := &domain.Project{
		ID:          ids.ProjectID(ids.New()),
		Name:        in.Name,
		Description: in.Description,
		Status:      ids.EntityActive,
		UserID:      in.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "project.create", "invalid project", err)
	}
	if err := s.store.Projects.Create(ctx, p); err != nil {
		return nil, apperr.Classify("project.create", err)
	}
	return p, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id ids.ProjectID) (*domain.Project, error) {
	p, err := s.store.Projects.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("project.get", err)
	}
	return p, nil
}

// List returns every project.
func (s *Service) List(ctx context.Context) ([]*domain.Project, error) {
	projects, err := s.store.Projects.List(ctx)
	if err != nil {
		return nil, apperr.Classify("project.list", err)
	}
	return projects, nil
}

// Update applies a partial patch to a project.
func (s *Service) Update(ctx context.Context, id ids.ProjectID, patch domain.Doc) (*domain.Project, error) {
	p, err := s.store.Projects.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("project.update", err)
	}
	if v, ok := patch["name"].(string); ok {
		p.Name = v
	}
	if v, ok := patch["description"].(string); ok {
		p.Description = v
	}
	if v, ok := patch["status"].(string); ok {
		parsed, perr := ids.ParseEntityStatus(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "project.update", "invalid status", perr)
		}
		p.Status = parsed
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "project.update", "invalid project after update", err)
	}
	p.UpdatedAt = s.clock.Now()
	if err := s.store.Projects.Update(ctx, p); err != nil {
		return nil, apperr.Classify("project.update", err)
	}
	return p, nil
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id ids.ProjectID) error {
	if err := s.store.Projects.Delete(ctx, id); err != nil {
		return apperr.Classify("project.delete", err)
	}
	return nil
}
