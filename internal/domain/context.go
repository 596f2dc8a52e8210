package domain

import (
	"time"

	"github.com/riverforge/contextmcp/internal/ids"
)

// ContextRecord is the common envelope every level's context document
// shares (spec.md §3.1 "Each context has ..."). The four level-specific
// types below embed it and add their own data payload.
type ContextRecord struct {
	ID                  ids.ContextID
	Level               ids.Level
	Version             int
	InheritanceDisabled bool
	ForceLocalOnly      bool
	Metadata            Doc
	Insights            []Insight
	ProgressNotes       []ProgressNote
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Insight is an appended record from add_insight (spec.md §4.2).
type Insight struct {
	Content    string
	Category   string
	Importance string
	Agent      string
	Timestamp  time.Time
}

// ProgressNote is an appended record from add_progress (spec.md §4.2).
type ProgressNote struct {
	Content   string
	Agent     string
	Timestamp time.Time
}

// GlobalContext is the process-wide singleton context (spec.md §3.1).
type GlobalContext struct {
	ContextRecord
	OrganizationName string
	GlobalSettings   Doc
}

// ProjectContext is attached to a Project, id == project id.
type ProjectContext struct {
	ContextRecord
	ProjectID      ids.ProjectID
	ProjectName    string
	ProjectSettings Doc
}

// BranchContext is attached to a Branch, id == branch id.
type BranchContext struct {
	ContextRecord
	BranchID       ids.BranchID
	ProjectID      ids.ProjectID
	GitBranchName  string
	BranchSettings Doc
}

// TaskContext is attached to a Task, id == task id.
type TaskContext struct {
	ContextRecord
	TaskID            ids.TaskID
	BranchID          ids.BranchID
	TaskData          Doc
	Progress          string
	NextSteps         []string
	CompletionSummary string
	TestingNotes      string
	CompletedAt       *time.Time
}

// AnyContext is the common read-side shape the context engine returns,
// regardless of level — it flattens the level-specific payload field into
// Data so resolve()/get() can hand back a single uniform document while
// §9's normalization ("data.context" for raw context responses) still
// distinguishes it from task responses.
type AnyContext struct {
	ContextRecord
	Data Doc // project_settings / branch_settings / global_settings / task_data, whichever applies
}
