package domain

import (
	"time"

	"github.com/riverforge/contextmcp/internal/ids"
)

// MaxTitleLen and MaxDescriptionLen are the boundary values from spec.md
// §3.1 / §8.3: 200 is accepted, 201 is rejected.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// Task is the central work-tracking entity (spec.md §3.1).
type Task struct {
	ID                  ids.TaskID
	Title               string
	Description         string
	BranchID            ids.BranchID
	Status              ids.TaskStatus
	Priority            ids.Priority
	Details             string
	EstimatedEffort     string
	DueDate             *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ContextID           *ids.ContextID
	ProgressPercentage  int
	Assignees           []ids.AgentID
	Labels              []string
	Dependencies        []ids.TaskID
	Subtasks            []ids.SubtaskID // ordered
	CompletionSummary   string
	TestingNotes        string
}

// Validate enforces the invariants of spec.md §3.1/§3.2 that don't require
// repository access (length bounds, no self-dependency). Cross-entity
// invariants (parent existence, cycle detection) live in tasksvc.
func (t *Task) Validate() error {
	if t.Title == "" {
		return ids.NewValidationError("title", "title must not be empty")
	}
	if len(t.Title) > MaxTitleLen {
		return ids.NewValidationError("title", "title exceeds 200 characters")
	}
	if len(t.Description) > MaxDescriptionLen {
		return ids.NewValidationError("description", "description exceeds 1000 characters")
	}
	if t.ProgressPercentage < 0 || t.ProgressPercentage > 100 {
		return ids.NewValidationError("progress_percentage", "must be between 0 and 100")
	}
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return ids.NewValidationError("dependencies", "a task cannot depend on itself")
		}
	}
	return nil
}

// HasDependency reports whether dep is already in the task's dependency set.
func (t *Task) HasDependency(dep ids.TaskID) bool {
	for _, d := range t.Dependencies {
		if d == dep {
			return true
		}
	}
	return false
}

// IsActionable reports whether the task is eligible for next-task selection
// (spec.md §4.3.3 / Glossary "Actionable task"). It does not check
// dependency completion — that requires the caller to resolve dependency
// statuses, since Task itself only stores dependency ids.
func (t *Task) IsActionable() bool {
	return t.Status == ids.StatusTodo || t.Status == ids.StatusInProgress
}

// Subtask is anchored to a parent Task (spec.md §3.1).
type Subtask struct {
	ID                ids.SubtaskID
	TaskID            ids.TaskID
	Title             string
	Description       string
	Status            ids.TaskStatus
	Priority          ids.Priority
	Assignees         []ids.AgentID
	ProgressPercentage int
	ProgressNotes     []string
	Blockers          []string
	CompletionSummary string
	ImpactOnParent    string
	InsightsFound     []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

func (s *Subtask) Validate() error {
	if s.Title == "" {
		return ids.NewValidationError("title", "title must not be empty")
	}
	if len(s.Title) > MaxTitleLen {
		return ids.NewValidationError("title", "title exceeds 200 characters")
	}
	if len(s.Description) > MaxDescriptionLen {
		return ids.NewValidationError("description", "description exceeds 1000 characters")
	}
	return nil
}
