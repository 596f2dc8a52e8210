// Package repository defines the abstract persistence boundary the core
// consumes (spec.md §6.2). Two implementations exist: internal/repository/memory
// (in-process, the default backing and the C11 test fixture) and
// internal/repository/postgres (sqlx/lib/pq backed). Neither this package nor
// its callers in C4-C8 know which is in use.
package repository

import (
	"context"
	"time"

	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
)

// TaskFilters narrows a task List/find_by_criteria call (spec.md §4.3.6).
type TaskFilters struct {
	Status    []ids.TaskStatus
	Priority  []ids.Priority
	Assignees []ids.AgentID
	Labels    []string
	BranchID  *ids.BranchID
	Query     string // case-insensitive substring match over title/description, used by Search
	Limit     int
}

// TaskRepository is the abstract persistence boundary for tasks.
type TaskRepository interface {
	Get(ctx context.Context, id ids.TaskID) (*domain.Task, error)
	// GetAnyState looks up a task across active and archived/cancelled
	// states (spec.md §4.3.4, §6.2 find_by_id_all_states) — dependency
	// validation must see tasks regardless of lifecycle state.
	GetAnyState(ctx context.Context, id ids.TaskID) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id ids.TaskID) error
	List(ctx context.Context, f TaskFilters) ([]*domain.Task, error)
	Exists(ctx context.Context, id ids.TaskID) (bool, error)
}

// SubtaskRepository is the abstract persistence boundary for subtasks.
type SubtaskRepository interface {
	Get(ctx context.Context, id ids.SubtaskID) (*domain.Subtask, error)
	Create(ctx context.Context, s *domain.Subtask) error
	Update(ctx context.Context, s *domain.Subtask) error
	Delete(ctx context.Context, id ids.SubtaskID) error
	ListByTask(ctx context.Context, taskID ids.TaskID) ([]*domain.Subtask, error)
}

// ProjectRepository is the abstract persistence boundary for projects.
type ProjectRepository interface {
	Get(ctx context.Context, id ids.ProjectID) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) error
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id ids.ProjectID) error
	List(ctx context.Context) ([]*domain.Project, error)
	Exists(ctx context.Context, id ids.ProjectID) (bool, error)
}

// BranchRepository is the abstract persistence boundary for branches.
type BranchRepository interface {
	Get(ctx context.Context, id ids.BranchID) (*domain.Branch, error)
	Create(ctx context.Context, b *domain.Branch) error
	Update(ctx context.Context, b *domain.Branch) error
	Delete(ctx context.Context, id ids.BranchID) error
	ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Branch, error)
	Exists(ctx context.Context, id ids.BranchID) (bool, error)
}

// AgentRepository is the abstract persistence boundary for agents.
type AgentRepository interface {
	Get(ctx context.Context, id ids.AgentID) (*domain.Agent, error)
	Create(ctx context.Context, a *domain.Agent) error
	Update(ctx context.Context, a *domain.Agent) error
	Delete(ctx context.Context, id ids.AgentID) error
	ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Agent, error)
	Exists(ctx context.Context, id ids.AgentID) (bool, error)
}

// ContextFilters narrows a context List call (spec.md §4.2 list).
type ContextFilters struct {
	ProjectID *ids.ProjectID
	BranchID  *ids.BranchID
}

// ContextRepository is the abstract persistence boundary for the four
// context levels, unified behind one interface keyed by (level, id) — the
// context engine (internal/contextengine) is the only caller and already
// knows which level it's asking for.
type ContextRepository interface {
	Get(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.AnyContext, error)
	Create(ctx context.Context, c *domain.AnyContext) error
	Update(ctx context.Context, c *domain.AnyContext) error
	Delete(ctx context.Context, level ids.Level, id ids.ContextID) error
	List(ctx context.Context, level ids.Level, f ContextFilters) ([]*domain.AnyContext, error)
	Exists(ctx context.Context, level ids.Level, id ids.ContextID) (bool, error)
}

// DelegationRepository persists the delegation queue (spec.md §4.2.5).
type DelegationRepository interface {
	Create(ctx context.Context, d *domain.Delegation) error
	Get(ctx context.Context, id string) (*domain.Delegation, error)
	// FindRecentByHash supports the idempotency window: a duplicate
	// (source,target,data-hash) within `window` collapses to the existing
	// record rather than creating a new one.
	FindRecentByHash(ctx context.Context, sourceID, targetID ids.ContextID, hash string, window time.Duration, now time.Time) (*domain.Delegation, error)
	List(ctx context.Context, targetLevel ids.Level) ([]*domain.Delegation, error)
}

// InheritanceCacheRepository is the C4.2.4 cache boundary. It is an
// optimization only — every caller must still function correctly with it
// disabled (spec.md §4.2.4, §5).
type InheritanceCacheRepository interface {
	Get(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.InheritanceCacheEntry, bool, error)
	Put(ctx context.Context, entry *domain.InheritanceCacheEntry) error
	// InvalidatePath invalidates every cached entry whose ResolutionPath
	// contains node.
	InvalidatePath(ctx context.Context, node ids.ContextID) error
}

// UnitOfWork scopes a set of repository operations to a single logical
// transaction (spec.md §5 "Atomic multi-step operations"). Implementations
// must roll back all prior writes within fn if fn returns a non-nil error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles every repository plus the unit-of-work boundary a use case
// needs; it's the single dependency tasksvc/subtasksvc/agentsvc/branchsvc/
// contextengine take.
type Store struct {
	Tasks      TaskRepository
	Subtasks   SubtaskRepository
	Projects   ProjectRepository
	Branches   BranchRepository
	Agents     AgentRepository
	Contexts   ContextRepository
	Delegations DelegationRepository
	Cache      InheritanceCacheRepository // may be nil when the cache feature flag is off
	UOW        UnitOfWork
}
