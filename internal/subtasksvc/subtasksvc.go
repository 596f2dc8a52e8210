// Package subtasksvc implements the Subtask Service (spec.md §4.4, component
// C6): CRUD of subtasks anchored to a parent task, with parent progress-
// percentage aggregation on completion.
package subtasksvc

import (
	"context"
	"fmt"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Service is the C6 use-case implementation.
type Service struct {
	store *repository.Store
	clock clock.Clock
}

// New builds a subtask service over store.
func New(store *repository.Store, c clock.Clock) *Service {
	return &Service{store: store, clock: c}
}

// CreateInput is the spec.md §4.4 subtask create payload.
type CreateInput struct {
	TaskID      ids.TaskID
	Title       string
	Description string
	Priority    ids.Priority
	Assignees   []ids.AgentID
}

// Create implements spec.md §4.4's create: validates the parent task exists.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Subtask, error) {
	if _, err := s.store.Tasks.Get(ctx, in.TaskID); err != nil {
		return nil, apperr.Wrap(apperr.CodeHierarchyViolation, "subtask.create", fmt.Sprintf("parent task %q does not exist", in.TaskID), err)
	}
	priority := in.Priority
	if priority == "" {
		priority = ids.PriorityMedium
	}
	now := s.clock.Now()
	st := &domain.Subtask{
		ID:          ids.SubtaskID(ids.New()),
		TaskID:      in.TaskID,
		Title:       in.Title,
		Description: in.Description,
		Status:      ids.StatusTodo,
		Priority:    priority,
		Assignees:   in.Assignees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := st.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "subtask.create", "invalid subtask", err)
	}
	if err := s.store.Subtasks.Create(ctx, st); err != nil {
		return nil, apperr.Classify("subtask.create", err)
	}

	task, err := s.store.Tasks.Get(ctx, in.TaskID)
	if err == nil {
		task.Subtasks = append(task.Subtasks, st.ID)
		task.UpdatedAt = now
		_ = s.store.Tasks.Update(ctx, task)
	}
	return st, nil
}

// Get returns a subtask by id.
func (s *Service) Get(ctx context.Context, id ids.SubtaskID) (*domain.Subtask, error) {
	st, err := s.store.Subtasks.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("subtask.get", err)
	}
	return st, nil
}

// ListByTask returns every subtask anchored to taskID.
func (s *Service) ListByTask(ctx context.Context, taskID ids.TaskID) ([]*domain.Subtask, error) {
	subs, err := s.store.Subtasks.ListByTask(ctx, taskID)
	if err != nil {
		return nil, apperr.Classify("subtask.list", err)
	}
	return subs, nil
}

// Update implements spec.md §4.4's partial subtask update.
func (s *Service) Update(ctx context.Context, id ids.SubtaskID, patch domain.Doc) (*domain.Subtask, error) {
	st, err := s.store.Subtasks.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("subtask.update", err)
	}
	if v, ok := patch["title"].(string); ok {
		st.Title = v
	}
	if v, ok := patch["description"].(string); ok {
		st.Description = v
	}
	if v, ok := patch["status"].(string); ok {
		parsed, perr := ids.ParseTaskStatus(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "subtask.update", "invalid status", perr)
		}
		st.Status = parsed
	}
	if v, ok := patch["priority"].(string); ok {
		parsed, perr := ids.ParsePriority(v)
		if perr != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "subtask.update", "invalid priority", perr)
		}
		st.Priority = parsed
	}
	if v, ok := patch["progress_percentage"]; ok {
		if n, ok := v.(int); ok {
			st.ProgressPercentage = n
		}
	}
	if v, ok := patch["progress_note"].(string); ok && v != "" {
		st.ProgressNotes = append(st.ProgressNotes, v)
	}
	if v, ok := patch["blocker"].(string); ok && v != "" {
		st.Blockers = append(st.Blockers, v)
	}
	if v, ok := patch["insight"].(string); ok && v != "" {
		st.InsightsFound = append(st.InsightsFound, v)
	}
	if err := st.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "subtask.update", "invalid subtask after update", err)
	}
	st.UpdatedAt = s.clock.Now()
	if err := s.store.Subtasks.Update(ctx, st); err != nil {
		return nil, apperr.Classify("subtask.update", err)
	}
	return st, nil
}

// Complete implements spec.md §4.4's complete: sets completed_at and
// recomputes the parent task's progress_percentage = 100 * done/total,
// rounded.
func (s *Service) Complete(ctx context.Context, id ids.SubtaskID, completionSummary, impactOnParent string) (*domain.Subtask, error) {
	st, err := s.store.Subtasks.Get(ctx, id)
	if err != nil {
		return nil, apperr.Classify("subtask.complete", err)
	}
	now := s.clock.Now()
	st.Status = ids.StatusDone
	st.ProgressPercentage = 100
	st.CompletionSummary = completionSummary
	st.ImpactOnParent = impactOnParent
	st.CompletedAt = &now
	st.UpdatedAt = now
	if err := s.store.Subtasks.Update(ctx, st); err != nil {
		return nil, apperr.Classify("subtask.complete", err)
	}
	if err := s.recomputeParentProgress(ctx, st.TaskID); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) recomputeParentProgress(ctx context.Context, taskID ids.TaskID) error {
	subs, err := s.store.Subtasks.ListByTask(ctx, taskID)
	if err != nil {
		return apperr.Classify("subtask.complete", err)
	}
	if len(subs) == 0 {
		return nil
	}
	done := 0
	for _, st := range subs {
		if st.Status == ids.StatusDone {
			done++
		}
	}
	task, err := s.store.Tasks.Get(ctx, taskID)
	if err != nil {
		return apperr.Classify("subtask.complete", err)
	}
	task.ProgressPercentage = roundPercent(done, len(subs))
	task.UpdatedAt = s.clock.Now()
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return apperr.Classify("subtask.complete", err)
	}
	return nil
}

func roundPercent(done, total int) int {
	if total == 0 {
		return 0
	}
	return (done*100 + total/2) / total
}

// Delete implements spec.md §4.4's deletion rule: only permitted when the
// subtask is not in_progress (it must be moved to cancelled first).
func (s *Service) Delete(ctx context.Context, id ids.SubtaskID) error {
	st, err := s.store.Subtasks.Get(ctx, id)
	if err != nil {
		return apperr.Classify("subtask.delete", err)
	}
	if st.Status == ids.StatusInProgress {
		return apperr.New(apperr.CodeInvalidState, "subtask.delete",
			"subtask is in_progress; move it to cancelled before deleting")
	}
	if err := s.store.Subtasks.Delete(ctx, id); err != nil {
		return apperr.Classify("subtask.delete", err)
	}
	task, err := s.store.Tasks.Get(ctx, st.TaskID)
	if err == nil {
		kept := task.Subtasks[:0:0]
		for _, sid := range task.Subtasks {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		task.Subtasks = kept
		task.UpdatedAt = s.clock.Now()
		_ = s.store.Tasks.Update(ctx, task)
	}
	return nil
}
