// Package tasksvc implements the Task Lifecycle Service (spec.md §4.3,
// component C5): create/update/get/next/dependency management/complete/
// list/search, all layered over internal/repository and coordinated with
// internal/contextengine for the synchronous task-context side effects.
package tasksvc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/guards"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Service is the C5 use-case implementation.
type Service struct {
	store  *repository.Store
	clock  clock.Clock
	engine *contextengine.Engine
	// minSummaryLength is the vision.context_enforcement.min_summary_length
	// gate (SPEC_FULL.md "Vision/workflow feature flags"): the minimum
	// completion_summary length beyond spec.md §3.2's bare non-empty
	// requirement. 0 means "use the default of 1" (non-empty only).
	minSummaryLength int
}

// New builds a task service over store, sharing the same context engine
// instance the dispatcher wires to C4 directly.
func New(store *repository.Store, c clock.Clock, engine *contextengine.Engine) *Service {
	return &Service{store: store, clock: c, engine: engine}
}

// SetMinSummaryLength configures the minimum completion_summary length
// enforced by Complete, wired from bootstrap.FeatureFlags at startup. n < 1
// is clamped to 1 so the hard non-empty invariant of spec.md §3.2 can never
// be disabled by configuration.
func (s *Service) SetMinSummaryLength(n int) {
	if n < 1 {
		n = 1
	}
	s.minSummaryLength = n
}

func (s *Service) effectiveMinSummaryLength() int {
	if s.minSummaryLength < 1 {
		return 1
	}
	return s.minSummaryLength
}

// CreateInput is the spec.md §4.3.1 create payload.
type CreateInput struct {
	BranchID        ids.BranchID
	Title           string
	Description     string
	Status          ids.TaskStatus
	Priority        ids.Priority
	Details         string
	EstimatedEffort string
	Assignees       []ids.AgentID
	Labels          []string
	DueDate         *time.Time
	Dependencies    []ids.TaskID
}

// Create implements spec.md §4.3.1: validate, verify branch exists, persist,
// then synchronously create the task-context — rolling the task back if
// context creation fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	if in.Status == "" {
		in.Status = ids.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = ids.PriorityMedium
	}
	now := s.clock.Now()
	task := &domain.Task{
		ID:              ids.TaskID(ids.New()),
		Title:           in.Title,
		Description:     in.Description,
		BranchID:        in.BranchID,
		Status:          in.Status,
		Priority:        in.Priority,
		Details:         in.Details,
		EstimatedEffort: in.EstimatedEffort,
		DueDate:         in.DueDate,
		CreatedAt:       now,
		UpdatedAt:       now,
		Assignees:       in.Assignees,
		Labels:          in.Labels,
		Dependencies:    in.Dependencies,
	}
	if err := task.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "task.create", "invalid task", err)
	}

	exists, err := s.store.Branches.Exists(ctx, in.BranchID)
	if err != nil {
		return nil, apperr.Classify("task.create", err)
	}
	if !exists {
		return nil, apperr.New(apperr.CodeHierarchyViolation, "task.create", fmt.Sprintf("branch %q does not exist", in.BranchID))
	}

	for _, dep := range in.Dependencies {
		if _, derr := s.store.Tasks.GetAnyState(ctx, dep); derr != nil {
			return nil, apperr.New(apperr.CodeDependencyError, "task.create", fmt.Sprintf("dependency %q does not exist", dep))
		}
	}

	if err := s.store.Tasks.Create(ctx, task); err != nil {
		return nil, apperr.Classify("task.create", err)
	}

	contextData := domain.Doc{
		"branch_id": string(in.BranchID),
		"task_data": domain.Doc{
			"title":       task.Title,
			"status":      string(task.Status),
			"description": task.Description,
			"priority":    string(task.Priority),
		},
	}
	if _, cerr := s.engine.Create(ctx, ids.LevelTask, ids.ContextID(task.ID), contextData, nil, nil); cerr != nil {
		if derr := s.store.Tasks.Delete(ctx, task.ID); derr != nil {
			return nil, apperr.Wrap(apperr.CodeContextCreationFailed, "task.create",
				fmt.Sprintf("context creation failed and rollback delete of orphan task %q also failed", task.ID), derr)
		}
		return nil, apperr.Wrap(apperr.CodeContextCreationFailed, "task.create", "failed to create task context", cerr)
	}

	cid := ids.ContextID(task.ID)
	task.ContextID = &cid

	if task.Status == ids.StatusInProgress {
		s.startAgentWorkload(ctx, task)
	}
	return task, nil
}

// startAgentWorkload implements the §3.3 "Agent workload" rule's increment
// half: current_workload++ (and status->busy once at capacity) for every
// assignee, on a task entering in_progress. Agents that don't exist are
// skipped — assignment by bare id does not imply registration here.
func (s *Service) startAgentWorkload(ctx context.Context, task *domain.Task) {
	for _, agentID := range task.Assignees {
		a, err := s.store.Agents.Get(ctx, agentID)
		if err != nil {
			continue
		}
		already := false
		for _, t := range a.ActiveTasks {
			if t == task.ID {
				already = true
				break
			}
		}
		if already {
			continue
		}
		a.StartTask(task.ID)
		_ = s.store.Agents.Update(ctx, a)
	}
}

// completeAgentWorkload implements the decrement half: current_workload--
// and a rolling duration/success-rate update, for every assignee, on a task
// reaching done.
func (s *Service) completeAgentWorkload(ctx context.Context, task *domain.Task, duration time.Duration) {
	for _, agentID := range task.Assignees {
		a, err := s.store.Agents.Get(ctx, agentID)
		if err != nil {
			continue
		}
		a.CompleteTask(task.ID, duration, true)
		_ = s.store.Agents.Update(ctx, a)
	}
}

// progressTokens are the §4.3.2 markers that reclassify an update as a
// progress report.
var progressTokens = []string{"progress:", "completed:", "implemented:"}

// UpdateResult reports whether Update reclassified the call as a progress
// report, so the dispatcher can emit the corresponding hint.
type UpdateResult struct {
	Task             *domain.Task
	ProgressReported bool
}

// Update implements spec.md §4.3.2: partial field update, unknown fields
// rejected by the caller (dispatcher coercion layer), with the progress-
// report reclassification rule.
func (s *Service) Update(ctx context.Context, id ids.TaskID, patch domain.Doc) (*UpdateResult, error) {
	task, err := s.store.Tasks.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("task.update", err)
	}
	statusBefore := task.Status

	reported := false
	if raw, ok := patch["details"]; ok {
		if text, ok := raw.(string); ok {
			task.Details = text
			lower := strings.ToLower(text)
			for _, tok := range progressTokens {
				if strings.Contains(lower, tok) {
					reported = true
					break
				}
			}
		}
	}
	if v, ok := patch["title"].(string); ok {
		task.Title = v
	}
	if v, ok := patch["description"].(string); ok {
		task.Description = v
	}
	if v, ok := patch["status"].(string); ok {
		st, perr := ids.ParseTaskStatus(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "task.update", "invalid status", perr)
		}
		task.Status = st
	}
	if v, ok := patch["priority"].(string); ok {
		p, perr := ids.ParsePriority(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "task.update", "invalid priority", perr)
		}
		task.Priority = p
	}
	if v, ok := patch["estimated_effort"].(string); ok {
		task.EstimatedEffort = v
	}
	if v, ok := patch["progress_percentage"]; ok {
		if n, ok := v.(int); ok {
			task.ProgressPercentage = n
		}
	}

	if reported && task.Status == ids.StatusTodo {
		task.Status = ids.StatusInProgress
	}

	if err := task.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "task.update", "invalid task after update", err)
	}
	task.UpdatedAt = s.clock.Now()
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, apperr.Classify("task.update", err)
	}

	if statusBefore != ids.StatusInProgress && task.Status == ids.StatusInProgress {
		s.startAgentWorkload(ctx, task)
	}

	if reported {
		if _, perr := s.engine.AddProgress(ctx, ids.LevelTask, ids.ContextID(task.ID), task.Details, ""); perr != nil {
			return nil, apperr.Wrap(apperr.CodeContextSyncFailed, "task.update", "failed to append progress note", perr)
		}
	}
	return &UpdateResult{Task: task, ProgressReported: reported}, nil
}

// DependencyChain is one entry of the §4.3.3 dependency_chains array.
type DependencyChain struct {
	ChainStatus          string
	CompletedCount       int
	BlockedCount         int
	CompletionPercentage int
	NextTask             *ids.TaskID
}

// DependencyInfo is the resolved dependency-relationships structure §4.3.3
// attaches to a get() response.
type DependencyInfo struct {
	DependsOn                       []ids.TaskID
	Blocks                         []ids.TaskID
	DependencyChains               []DependencyChain
	TotalDependencies               int
	CompletedDependencies           int
	BlockedDependencies             int
	CanStart                        bool
	IsBlocked                       bool
	IsBlockingOthers                bool
	DependencyCompletionPercentage int
}

// Get implements spec.md §4.3.3's get() with optional dependency resolution.
func (s *Service) Get(ctx context.Context, id ids.TaskID, includeDependencies bool) (*domain.Task, *DependencyInfo, error) {
	task, err := s.store.Tasks.Get(ctx, id)
	if err != nil {
		return nil, nil, apperr.Classify("task.get", err)
	}
	if !includeDependencies {
		return task, nil, nil
	}
	info, err := s.resolveDependencyInfo(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	return task, info, nil
}

func (s *Service) resolveDependencyInfo(ctx context.Context, task *domain.Task) (*DependencyInfo, error) {
	info := &DependencyInfo{DependsOn: task.Dependencies}

	completed, blocked := 0, 0
	for _, depID := range task.Dependencies {
		dep, derr := s.store.Tasks.GetAnyState(ctx, depID)
		if derr != nil {
			continue
		}
		chain := DependencyChain{ChainStatus: string(dep.Status)}
		if dep.Status == ids.StatusDone {
			completed++
			chain.CompletedCount = 1
			chain.CompletionPercentage = 100
		} else if dep.Status == ids.StatusBlocked {
			blocked++
			chain.BlockedCount = 1
		}
		info.DependencyChains = append(info.DependencyChains, chain)
	}
	info.TotalDependencies = len(task.Dependencies)
	info.CompletedDependencies = completed
	info.BlockedDependencies = blocked
	if info.TotalDependencies > 0 {
		info.DependencyCompletionPercentage = (completed * 100) / info.TotalDependencies
	} else {
		info.DependencyCompletionPercentage = 100
	}
	info.IsBlocked = task.Status == ids.StatusBlocked || blocked > 0
	info.CanStart = task.IsActionable() && completed == info.TotalDependencies && !info.IsBlocked

	all, err := s.store.Tasks.List(ctx, repository.TaskFilters{BranchID: &task.BranchID})
	if err == nil {
		for _, other := range all {
			if other.HasDependency(task.ID) {
				info.Blocks = append(info.Blocks, other.ID)
			}
		}
	}
	info.IsBlockingOthers = len(info.Blocks) > 0

	return info, nil
}

// Next implements spec.md §4.3.3's next(): the highest-priority actionable
// task in branchID, tie-broken by oldest updated_at then lowest id.
func (s *Service) Next(ctx context.Context, branchID ids.BranchID) (*domain.Task, error) {
	tasks, err := s.store.Tasks.List(ctx, repository.TaskFilters{BranchID: &branchID})
	if err != nil {
		return nil, apperr.Classify("task.next", err)
	}

	var candidates []*domain.Task
	for _, t := range tasks {
		if !t.IsActionable() {
			continue
		}
		allDepsDone := true
		for _, dep := range t.Dependencies {
			depTask, derr := s.store.Tasks.GetAnyState(ctx, dep)
			if derr != nil || depTask.Status != ids.StatusDone {
				allDepsDone = false
				break
			}
		}
		if !allDepsDone {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.CodeNotFound, "task.next", fmt.Sprintf("no actionable task in branch %q", branchID))
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return candidates[0], nil
}

// AddDependency implements spec.md §4.3.4: verifies both tasks exist across
// all states, rejects self-dependency and cycles, and is a no-op on an
// already-present edge.
func (s *Service) AddDependency(ctx context.Context, taskID, dependencyID ids.TaskID) (*domain.Task, error) {
	task, err := s.store.Tasks.GetAnyState(ctx, taskID)
	if err != nil {
		return nil, apperr.Classify("task.add_dependency", err)
	}
	if _, err := s.store.Tasks.GetAnyState(ctx, dependencyID); err != nil {
		return nil, apperr.Classify("task.add_dependency", err)
	}
	if task.HasDependency(dependencyID) {
		return task, nil
	}

	gctx := &guards.GuardContext{
		TaskID:         string(taskID),
		SelfDependency: taskID == dependencyID,
		WouldCycle:     s.wouldCycle(ctx, dependencyID, taskID, map[ids.TaskID]bool{}),
	}
	outcome := guards.NewRunner().Run(ctx, gctx, guards.DependencyEdgeGuards())
	if outcome.Blocked {
		if gctx.SelfDependency {
			return nil, apperr.New(apperr.CodeValidation, "task.add_dependency", "a task cannot depend on itself")
		}
		return nil, apperr.New(apperr.CodeConstraintViolation, "task.add_dependency",
			fmt.Sprintf("adding dependency %q to %q would create a cycle", dependencyID, taskID))
	}

	task.Dependencies = append(task.Dependencies, dependencyID)
	task.UpdatedAt = s.clock.Now()
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, apperr.Classify("task.add_dependency", err)
	}
	return task, nil
}

// wouldCycle reports whether from can already (transitively) reach to via
// dependency edges — i.e. whether adding to→from (caller adds "to depends
// on from") would close a cycle back to "to".
func (s *Service) wouldCycle(ctx context.Context, from, to ids.TaskID, visited map[ids.TaskID]bool) bool {
	if from == to {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	t, err := s.store.Tasks.GetAnyState(ctx, from)
	if err != nil {
		return false
	}
	for _, dep := range t.Dependencies {
		if s.wouldCycle(ctx, dep, to, visited) {
			return true
		}
	}
	return false
}

// RemoveDependency implements spec.md §4.3.4's symmetric, idempotent removal.
func (s *Service) RemoveDependency(ctx context.Context, taskID, dependencyID ids.TaskID) (*domain.Task, error) {
	task, err := s.store.Tasks.GetAnyState(ctx, taskID)
	if err != nil {
		return nil, apperr.Classify("task.remove_dependency", err)
	}
	kept := task.Dependencies[:0:0]
	for _, d := range task.Dependencies {
		if d != dependencyID {
			kept = append(kept, d)
		}
	}
	task.Dependencies = kept
	task.UpdatedAt = s.clock.Now()
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, apperr.Classify("task.remove_dependency", err)
	}
	return task, nil
}

// Complete implements spec.md §4.3.5's five-step completion transaction.
func (s *Service) Complete(ctx context.Context, id ids.TaskID, completionSummary, testingNotes string) (*domain.Task, error) {
	var result *domain.Task
	err := s.store.UOW.Do(ctx, func(ctx context.Context) error {
		task, err := s.store.Tasks.Get(ctx, id)
		if err != nil {
			return apperr.Classify("task.complete", err)
		}

		subtasks, err := s.store.Subtasks.ListByTask(ctx, id)
		if err != nil {
			return apperr.Classify("task.complete", err)
		}
		var incomplete []string
		for _, st := range subtasks {
			if st.Status != ids.StatusDone {
				incomplete = append(incomplete, string(st.ID))
			}
		}

		var incompleteDeps []string
		for _, depID := range task.Dependencies {
			dep, derr := s.store.Tasks.GetAnyState(ctx, depID)
			if derr != nil || dep.Status != ids.StatusDone {
				incompleteDeps = append(incompleteDeps, string(depID))
			}
		}

		gctx := &guards.GuardContext{
			TaskID:             string(id),
			SubtaskCount:       len(subtasks),
			IncompleteSubtasks: incomplete,
			DependencyCount:    len(task.Dependencies),
			IncompleteDeps:     incompleteDeps,
			CompletionSummary:  completionSummary,
		}
		outcome := guards.NewRunner().Run(ctx, gctx, guards.CompletionGuards())
		if outcome.Blocked {
			if completionSummary == "" {
				return apperr.New(apperr.CodeValidation, "task.complete", "completion_summary must not be empty")
			}
			if len(incomplete) > 0 {
				return apperr.New(apperr.CodeInvalidState, "task.complete",
					fmt.Sprintf("subtasks not done: %s", strings.Join(incomplete, ", ")))
			}
			return apperr.New(apperr.CodeDependencyError, "task.complete",
				fmt.Sprintf("dependencies not done: %s", strings.Join(incompleteDeps, ", ")))
		}
		if min := s.effectiveMinSummaryLength(); len(completionSummary) < min {
			return apperr.New(apperr.CodeValidation, "task.complete",
				fmt.Sprintf("completion_summary must be at least %d characters", min))
		}

		now := s.clock.Now()
		exists, err := s.store.Contexts.Exists(ctx, ids.LevelTask, ids.ContextID(task.ID))
		if err != nil {
			return apperr.Classify("task.complete", err)
		}
		if !exists {
			contextData := domain.Doc{
				"branch_id": string(task.BranchID),
				"task_data": domain.Doc{
					"title":       task.Title,
					"status":      string(task.Status),
					"description": task.Description,
					"priority":    string(task.Priority),
				},
			}
			if _, cerr := s.engine.Create(ctx, ids.LevelTask, ids.ContextID(task.ID), contextData, nil, nil); cerr != nil {
				return apperr.Wrap(apperr.CodeContextCreationFailed, "task.complete", "failed to auto-create task context", cerr)
			}
		}
		completionPatch := domain.Doc{"completion_summary": completionSummary, "status": "done"}
		if testingNotes != "" {
			completionPatch["testing_notes"] = testingNotes
		}
		if _, uerr := s.engine.Update(ctx, ids.LevelTask, ids.ContextID(task.ID), completionPatch, true); uerr != nil {
			return apperr.Wrap(apperr.CodeContextSyncFailed, "task.complete", "failed to update task context", uerr)
		}

		createdAt := task.CreatedAt
		task.Status = ids.StatusDone
		task.ProgressPercentage = 100
		task.CompletionSummary = completionSummary
		task.TestingNotes = testingNotes
		task.UpdatedAt = now
		if err := s.store.Tasks.Update(ctx, task); err != nil {
			return apperr.Classify("task.complete", err)
		}
		s.completeAgentWorkload(ctx, task, now.Sub(createdAt))
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a task outright (spec.md §6.1 manage_task's delete action).
func (s *Service) Delete(ctx context.Context, id ids.TaskID) error {
	if err := s.store.Tasks.Delete(ctx, id); err != nil {
		return apperr.Classify("task.delete", err)
	}
	return nil
}

// List implements spec.md §4.3.6's list().
func (s *Service) List(ctx context.Context, f repository.TaskFilters) ([]*domain.Task, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	tasks, err := s.store.Tasks.List(ctx, f)
	if err != nil {
		return nil, apperr.Classify("task.list", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt) })
	if len(tasks) > f.Limit {
		tasks = tasks[:f.Limit]
	}
	return tasks, nil
}

// Search implements spec.md §4.3.6's search(): case-insensitive substring
// match over title/description.
func (s *Service) Search(ctx context.Context, query string, branchID *ids.BranchID, limit int) ([]*domain.Task, error) {
	f := repository.TaskFilters{Query: query, Limit: limit}
	if branchID != nil {
		f.BranchID = branchID
	}
	return s.List(ctx, f)
}
