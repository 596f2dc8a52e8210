package domain

import (
	"time"

	"github.com/riverforge/contextmcp/internal/ids"
)

// Project is the second hierarchy level (spec.md §3.1).
type Project struct {
	ID          ids.ProjectID
	Name        string
	Description string
	Status      ids.EntityStatus
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Project) Validate() error {
	if p.Name == "" {
		return ids.NewValidationError("name", "name must not be empty")
	}
	if len(p.Name) > MaxTitleLen {
		return ids.NewValidationError("name", "name exceeds 200 characters")
	}
	return nil
}

// Branch is the third hierarchy level — a unit of work within a Project,
// owning Tasks (spec.md §3.1, §3.4).
type Branch struct {
	ID                 ids.BranchID
	ProjectID          ids.ProjectID
	Name               string
	Description        string
	AssignedAgentID    *ids.AgentID
	Status             ids.EntityStatus
	Priority           ids.Priority
	TaskCount          int
	CompletedTaskCount int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (b *Branch) Validate() error {
	if b.Name == "" {
		return ids.NewValidationError("name", "name must not be empty")
	}
	if len(b.Name) > MaxTitleLen {
		return ids.NewValidationError("name", "name exceeds 200 characters")
	}
	return nil
}

// ProgressPercentage returns the completion percentage, 0 when the branch
// has no tasks yet (spec.md §8.3).
func (b *Branch) ProgressPercentage() int {
	if b.TaskCount == 0 {
		return 0
	}
	return (b.CompletedTaskCount * 100) / b.TaskCount
}

// Agent is an autonomous worker that can be assigned tasks (spec.md §3.1).
type Agent struct {
	ID                  ids.AgentID
	ProjectID           ids.ProjectID
	Name                string
	Description         string
	Capabilities        []ids.Capability
	Status              ids.AgentStatus
	MaxConcurrentTasks  int
	CurrentWorkload     int
	AssignedProjects    []ids.ProjectID
	AssignedTrees       []ids.BranchID // "trees" = branches, per spec.md Glossary/terminology
	ActiveTasks         []ids.TaskID
	CompletedTasks      []ids.TaskID
	AverageTaskDuration float64 // seconds; exponential moving average, see SPEC_FULL.md
	SuccessRate         float64 // 0..100, exponential moving average
}

func (a *Agent) Validate() error {
	if a.Name == "" {
		return ids.NewValidationError("name", "name must not be empty")
	}
	if a.MaxConcurrentTasks < 0 {
		return ids.NewValidationError("max_concurrent_tasks", "must not be negative")
	}
	return nil
}

// refreshStatus recomputes Status from CurrentWorkload vs MaxConcurrentTasks
// (spec.md §3.3 "Agent workload"). It never overrides paused/offline, which
// are operator-controlled states.
func (a *Agent) refreshStatus() {
	if a.Status == ids.AgentPaused || a.Status == ids.AgentOffline {
		return
	}
	if a.MaxConcurrentTasks > 0 && a.CurrentWorkload >= a.MaxConcurrentTasks {
		a.Status = ids.AgentBusy
	} else {
		a.Status = ids.AgentAvailable
	}
}

// StartTask increments the agent's workload accounting on task assignment.
func (a *Agent) StartTask(taskID ids.TaskID) {
	a.CurrentWorkload++
	a.ActiveTasks = append(a.ActiveTasks, taskID)
	a.refreshStatus()
}

// CompleteTask moves a task from active to completed and updates rolling
// duration/success-rate averages (SPEC_FULL.md "Agent success-rate and
// duration rollups", α=0.3).
func (a *Agent) CompleteTask(taskID ids.TaskID, duration time.Duration, succeeded bool) {
	const alpha = 0.3

	for i, id := range a.ActiveTasks {
		if id == taskID {
			a.ActiveTasks = append(a.ActiveTasks[:i], a.ActiveTasks[i+1:]...)
			break
		}
	}
	a.CompletedTasks = append(a.CompletedTasks, taskID)
	if a.CurrentWorkload > 0 {
		a.CurrentWorkload--
	}

	outcome := 0.0
	if succeeded {
		outcome = 100.0
	}
	if len(a.CompletedTasks) == 1 {
		a.AverageTaskDuration = duration.Seconds()
		a.SuccessRate = outcome
	} else {
		a.AverageTaskDuration = alpha*duration.Seconds() + (1-alpha)*a.AverageTaskDuration
		a.SuccessRate = alpha*outcome + (1-alpha)*a.SuccessRate
	}
	a.refreshStatus()
}
