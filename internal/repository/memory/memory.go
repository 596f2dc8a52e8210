// Package memory is an in-process, mutex-guarded implementation of the
// repository boundary (internal/repository). It is both the default backing
// for a standalone server run and the fixture used by C11 property tests —
// grounded on the teacher's preference for small, dependency-free test
// doubles over mocking frameworks (see stretchr/testify usage throughout
// the pack: state-based fakes, not call-expectation mocks).
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine/cache"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Store is an in-memory repository.Store backing. All repositories share
// one mutex: contention is not a concern for a test/dev fixture, and it
// keeps the per-key serialization guarantee of spec.md §5 trivially true.
type Store struct {
	mu sync.Mutex

	tasks       map[ids.TaskID]*domain.Task
	subtasks    map[ids.SubtaskID]*domain.Subtask
	projects    map[ids.ProjectID]*domain.Project
	branches    map[ids.BranchID]*domain.Branch
	agents      map[ids.AgentID]*domain.Agent
	contexts    map[ids.Level]map[ids.ContextID]*domain.AnyContext
	delegations map[string]*domain.Delegation

	clock clock.Clock
}

// New builds an empty in-memory store using the given clock (clock.System
// in production, a clock.Fixed in tests).
func New(c clock.Clock) *Store {
	return &Store{
		tasks:    make(map[ids.TaskID]*domain.Task),
		subtasks: make(map[ids.SubtaskID]*domain.Subtask),
		projects: make(map[ids.ProjectID]*domain.Project),
		branches: make(map[ids.BranchID]*domain.Branch),
		agents:   make(map[ids.AgentID]*domain.Agent),
		contexts: map[ids.Level]map[ids.ContextID]*domain.AnyContext{
			ids.LevelGlobal:  {},
			ids.LevelProject: {},
			ids.LevelBranch:  {},
			ids.LevelTask:    {},
		},
		delegations: make(map[string]*domain.Delegation),
		clock:       c,
	}
}

// NewRepositoryStore wraps a *Store into a repository.Store bundling every
// interface plus a no-op UnitOfWork (the in-memory backing needs no real
// transaction machinery; every operation it performs is already atomic
// under the single mutex). The inheritance cache is always the bounded LRU
// implementation (internal/contextengine/cache) — it is process-wide
// ephemeral state independent of which repository backing is in use
// (spec.md §9, §5 "Process-wide state").
func NewRepositoryStore(c clock.Clock) *repository.Store {
	s := New(c)
	return &repository.Store{
		Tasks:       s,
		Subtasks:    subtaskRepo{s},
		Projects:    projectRepo{s},
		Branches:    branchRepo{s},
		Agents:      agentRepo{s},
		Contexts:    contextRepo{s},
		Delegations: delegationRepo{s},
		Cache:       cache.New(cache.DefaultSize),
		UOW:         noopUOW{},
	}
}

type noopUOW struct{}

func (noopUOW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func notFound(op, kind, id string) error {
	return apperr.New(apperr.CodeNotFound, op, fmt.Sprintf("%s %q not found", kind, id))
}

// --- tasks ---

func (s *Store) Get(ctx context.Context, id ids.TaskID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task.get", "task", string(id))
	}
	cp := *t
	return &cp, nil
}

func (s *Store) GetAnyState(ctx context.Context, id ids.TaskID) (*domain.Task, error) {
	return s.Get(ctx, id)
}

func (s *Store) Create(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "task.create", fmt.Sprintf("task %q already exists", t.ID))
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return notFound("task.update", "task", string(t.ID))
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *Store) Delete(ctx context.Context, id ids.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound("task.delete", "task", string(id))
	}
	delete(s.tasks, id)
	// cascade: subtasks and task-context are owned by the task (spec.md §3.4)
	for sid, st := range s.subtasks {
		if st.TaskID == id {
			delete(s.subtasks, sid)
		}
	}
	delete(s.contexts[ids.LevelTask], ids.ContextID(id))
	return nil
}

func (s *Store) List(ctx context.Context, f repository.TaskFilters) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := func(t *domain.Task) bool {
		if f.BranchID != nil && t.BranchID != *f.BranchID {
			return false
		}
		if len(f.Status) > 0 && !containsStatus(f.Status, t.Status) {
			return false
		}
		if len(f.Priority) > 0 && !containsPriority(f.Priority, t.Priority) {
			return false
		}
		if len(f.Assignees) > 0 && !anyAssigneeMatches(f.Assignees, t.Assignees) {
			return false
		}
		if len(f.Labels) > 0 && !anyLabelMatches(f.Labels, t.Labels) {
			return false
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
				return false
			}
		}
		return true
	}

	var out []*domain.Task
	for _, t := range s.tasks {
		if matches(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, id ids.TaskID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok, nil
}

func containsStatus(set []ids.TaskStatus, v ids.TaskStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(set []ids.Priority, v ids.Priority) bool {
	for _, p := range set {
		if p == v {
			return true
		}
	}
	return false
}

func anyAssigneeMatches(want, have []ids.AgentID) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func anyLabelMatches(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// --- subtasks ---

func (s *Store) GetSubtask(ctx context.Context, id ids.SubtaskID) (*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subtasks[id]
	if !ok {
		return nil, notFound("subtask.get", "subtask", string(id))
	}
	cp := *st
	return &cp, nil
}

func (s *Store) CreateSubtask(ctx context.Context, st *domain.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[st.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "subtask.create", fmt.Sprintf("subtask %q already exists", st.ID))
	}
	cp := *st
	s.subtasks[st.ID] = &cp
	return nil
}

func (s *Store) UpdateSubtask(ctx context.Context, st *domain.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[st.ID]; !ok {
		return notFound("subtask.update", "subtask", string(st.ID))
	}
	cp := *st
	s.subtasks[st.ID] = &cp
	return nil
}

func (s *Store) DeleteSubtask(ctx context.Context, id ids.SubtaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[id]; !ok {
		return notFound("subtask.delete", "subtask", string(id))
	}
	delete(s.subtasks, id)
	return nil
}

func (s *Store) ListByTask(ctx context.Context, taskID ids.TaskID) ([]*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Subtask
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- projects ---

func (s *Store) GetProject(ctx context.Context, id ids.ProjectID) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project.get", "project", string(id))
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "project.create", fmt.Sprintf("project %q already exists", p.ID))
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return notFound("project.update", "project", string(p.ID))
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id ids.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return notFound("project.delete", "project", string(id))
	}
	delete(s.projects, id)
	delete(s.contexts[ids.LevelProject], ids.ContextID(id))
	return nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Project
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ProjectExists(ctx context.Context, id ids.ProjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	return ok, nil
}

// --- branches ---

func (s *Store) GetBranch(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, notFound("branch.get", "branch", string(id))
	}
	cp := *b
	return &cp, nil
}

func (s *Store) CreateBranch(ctx context.Context, b *domain.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[b.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "branch.create", fmt.Sprintf("branch %q already exists", b.ID))
	}
	cp := *b
	s.branches[b.ID] = &cp
	return nil
}

func (s *Store) UpdateBranch(ctx context.Context, b *domain.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[b.ID]; !ok {
		return notFound("branch.update", "branch", string(b.ID))
	}
	cp := *b
	s.branches[b.ID] = &cp
	return nil
}

func (s *Store) DeleteBranch(ctx context.Context, id ids.BranchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[id]; !ok {
		return notFound("branch.delete", "branch", string(id))
	}
	delete(s.branches, id)
	delete(s.contexts[ids.LevelBranch], ids.ContextID(id))
	return nil
}

func (s *Store) ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Branch
	for _, b := range s.branches {
		if b.ProjectID == projectID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) BranchExists(ctx context.Context, id ids.BranchID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.branches[id]
	return ok, nil
}

// --- agents ---

func (s *Store) GetAgent(ctx context.Context, id ids.AgentID) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("agent.get", "agent", string(id))
	}
	cp := *a
	return &cp, nil
}

func (s *Store) CreateAgent(ctx context.Context, a *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "agent.create", fmt.Sprintf("agent %q already exists", a.ID))
	}
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

func (s *Store) UpdateAgent(ctx context.Context, a *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return notFound("agent.update", "agent", string(a.ID))
	}
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, id ids.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return notFound("agent.delete", "agent", string(id))
	}
	delete(s.agents, id)
	return nil
}

func (s *Store) ListAgentsByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Agent
	for _, a := range s.agents {
		if a.ProjectID == projectID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AgentExists(ctx context.Context, id ids.AgentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[id]
	return ok, nil
}

// --- contexts ---

func (s *Store) GetContext(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.AnyContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[level][id]
	if !ok {
		return nil, notFound("context.get", "context", string(level)+":"+string(id))
	}
	cp := *c
	cp.Data = c.Data.Clone()
	return &cp, nil
}

func (s *Store) CreateContext(ctx context.Context, c *domain.AnyContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.contexts[c.Level]
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.create", fmt.Sprintf("unknown level %q", c.Level))
	}
	if _, exists := bucket[c.ID]; exists {
		return apperr.New(apperr.CodeAlreadyExists, "context.create", fmt.Sprintf("context %s:%s already exists", c.Level, c.ID))
	}
	cp := *c
	cp.Data = c.Data.Clone()
	bucket[c.ID] = &cp
	return nil
}

func (s *Store) UpdateContext(ctx context.Context, c *domain.AnyContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.contexts[c.Level]
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.update", fmt.Sprintf("unknown level %q", c.Level))
	}
	if _, exists := bucket[c.ID]; !exists {
		return notFound("context.update", "context", string(c.Level)+":"+string(c.ID))
	}
	cp := *c
	cp.Data = c.Data.Clone()
	bucket[c.ID] = &cp
	return nil
}

func (s *Store) DeleteContext(ctx context.Context, level ids.Level, id ids.ContextID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.contexts[level]
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.delete", fmt.Sprintf("unknown level %q", level))
	}
	if _, exists := bucket[id]; !exists {
		return notFound("context.delete", "context", string(level)+":"+string(id))
	}
	delete(bucket, id)
	return nil
}

func (s *Store) ListContexts(ctx context.Context, level ids.Level, f repository.ContextFilters) ([]*domain.AnyContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.contexts[level]
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "context.list", fmt.Sprintf("unknown level %q", level))
	}
	var out []*domain.AnyContext
	for _, c := range bucket {
		if level == ids.LevelBranch && f.ProjectID != nil {
			b, ok := s.branches[ids.BranchID(c.ID)]
			if !ok || b.ProjectID != *f.ProjectID {
				continue
			}
		}
		if level == ids.LevelTask && f.BranchID != nil {
			tk, ok := s.tasks[ids.TaskID(c.ID)]
			if !ok || tk.BranchID != *f.BranchID {
				continue
			}
		}
		cp := *c
		cp.Data = c.Data.Clone()
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ContextExists(ctx context.Context, level ids.Level, id ids.ContextID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.contexts[level]
	if !ok {
		return false, nil
	}
	_, exists := bucket[id]
	return exists, nil
}

// --- delegations ---

func (s *Store) CreateDelegation(ctx context.Context, d *domain.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delegations[d.ID]; ok {
		return apperr.New(apperr.CodeAlreadyExists, "delegation.create", fmt.Sprintf("delegation %q already exists", d.ID))
	}
	cp := *d
	s.delegations[d.ID] = &cp
	return nil
}

func (s *Store) GetDelegation(ctx context.Context, id string) (*domain.Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delegations[id]
	if !ok {
		return nil, notFound("delegation.get", "delegation", id)
	}
	cp := *d
	return &cp, nil
}

func (s *Store) FindRecentByHash(ctx context.Context, sourceID, targetID ids.ContextID, hash string, window time.Duration, now time.Time) (*domain.Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-window)
	for _, d := range s.delegations {
		if d.SourceID == sourceID && d.TargetID == targetID && d.DataHash == hash && !d.CreatedAt.Before(cutoff) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListDelegations(ctx context.Context, targetLevel ids.Level) ([]*domain.Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Delegation
	for _, d := range s.delegations {
		if d.TargetLevel == targetLevel {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Inheritance cache: see internal/contextengine/cache for the bounded LRU
// implementation used for repository.Store.Cache (spec.md §4.2.4, §9).
