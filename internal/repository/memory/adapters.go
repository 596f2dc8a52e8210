package memory

import (
	"context"
	"time"

	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Store's Task methods already use the plain Get/Create/Update/Delete/List/
// Exists names repository.TaskRepository expects. Every other entity needs
// its own name on Store (GetSubtask, GetProject, ...) since Go doesn't allow
// overloading a single type's method name by parameter type. These thin
// wrappers adapt each disambiguated name back to the interface shape
// repository.Store expects, one per aggregate.

type subtaskRepo struct{ *Store }

func (r subtaskRepo) Get(ctx context.Context, id ids.SubtaskID) (*domain.Subtask, error) {
	return r.Store.GetSubtask(ctx, id)
}
func (r subtaskRepo) Create(ctx context.Context, s *domain.Subtask) error {
	return r.Store.CreateSubtask(ctx, s)
}
func (r subtaskRepo) Update(ctx context.Context, s *domain.Subtask) error {
	return r.Store.UpdateSubtask(ctx, s)
}
func (r subtaskRepo) Delete(ctx context.Context, id ids.SubtaskID) error {
	return r.Store.DeleteSubtask(ctx, id)
}
func (r subtaskRepo) ListByTask(ctx context.Context, taskID ids.TaskID) ([]*domain.Subtask, error) {
	return r.Store.ListByTask(ctx, taskID)
}

type projectRepo struct{ *Store }

func (r projectRepo) Get(ctx context.Context, id ids.ProjectID) (*domain.Project, error) {
	return r.Store.GetProject(ctx, id)
}
func (r projectRepo) Create(ctx context.Context, p *domain.Project) error {
	return r.Store.CreateProject(ctx, p)
}
func (r projectRepo) Update(ctx context.Context, p *domain.Project) error {
	return r.Store.UpdateProject(ctx, p)
}
func (r projectRepo) Delete(ctx context.Context, id ids.ProjectID) error {
	return r.Store.DeleteProject(ctx, id)
}
func (r projectRepo) List(ctx context.Context) ([]*domain.Project, error) {
	return r.Store.ListProjects(ctx)
}
func (r projectRepo) Exists(ctx context.Context, id ids.ProjectID) (bool, error) {
	return r.Store.ProjectExists(ctx, id)
}

type branchRepo struct{ *Store }

func (r branchRepo) Get(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	return r.Store.GetBranch(ctx, id)
}
func (r branchRepo) Create(ctx context.Context, b *domain.Branch) error {
	return r.Store.CreateBranch(ctx, b)
}
func (r branchRepo) Update(ctx context.Context, b *domain.Branch) error {
	return r.Store.UpdateBranch(ctx, b)
}
func (r branchRepo) Delete(ctx context.Context, id ids.BranchID) error {
	return r.Store.DeleteBranch(ctx, id)
}
func (r branchRepo) ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Branch, error) {
	return r.Store.ListByProject(ctx, projectID)
}
func (r branchRepo) Exists(ctx context.Context, id ids.BranchID) (bool, error) {
	return r.Store.BranchExists(ctx, id)
}

type agentRepo struct{ *Store }

func (r agentRepo) Get(ctx context.Context, id ids.AgentID) (*domain.Agent, error) {
	return r.Store.GetAgent(ctx, id)
}
func (r agentRepo) Create(ctx context.Context, a *domain.Agent) error {
	return r.Store.CreateAgent(ctx, a)
}
func (r agentRepo) Update(ctx context.Context, a *domain.Agent) error {
	return r.Store.UpdateAgent(ctx, a)
}
func (r agentRepo) Delete(ctx context.Context, id ids.AgentID) error {
	return r.Store.DeleteAgent(ctx, id)
}
func (r agentRepo) ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Agent, error) {
	return r.Store.ListAgentsByProject(ctx, projectID)
}
func (r agentRepo) Exists(ctx context.Context, id ids.AgentID) (bool, error) {
	return r.Store.AgentExists(ctx, id)
}

type contextRepo struct{ *Store }

func (r contextRepo) Get(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.AnyContext, error) {
	return r.Store.GetContext(ctx, level, id)
}
func (r contextRepo) Create(ctx context.Context, c *domain.AnyContext) error {
	return r.Store.CreateContext(ctx, c)
}
func (r contextRepo) Update(ctx context.Context, c *domain.AnyContext) error {
	return r.Store.UpdateContext(ctx, c)
}
func (r contextRepo) Delete(ctx context.Context, level ids.Level, id ids.ContextID) error {
	return r.Store.DeleteContext(ctx, level, id)
}
func (r contextRepo) List(ctx context.Context, level ids.Level, f repository.ContextFilters) ([]*domain.AnyContext, error) {
	return r.Store.ListContexts(ctx, level, f)
}
func (r contextRepo) Exists(ctx context.Context, level ids.Level, id ids.ContextID) (bool, error) {
	return r.Store.ContextExists(ctx, level, id)
}

type delegationRepo struct{ *Store }

func (r delegationRepo) Create(ctx context.Context, d *domain.Delegation) error {
	return r.Store.CreateDelegation(ctx, d)
}
func (r delegationRepo) Get(ctx context.Context, id string) (*domain.Delegation, error) {
	return r.Store.GetDelegation(ctx, id)
}
func (r delegationRepo) FindRecentByHash(ctx context.Context, sourceID, targetID ids.ContextID, hash string, window time.Duration, now time.Time) (*domain.Delegation, error) {
	return r.Store.FindRecentByHash(ctx, sourceID, targetID, hash, window, now)
}
func (r delegationRepo) List(ctx context.Context, targetLevel ids.Level) ([]*domain.Delegation, error) {
	return r.Store.ListDelegations(ctx, targetLevel)
}

