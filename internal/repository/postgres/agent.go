package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

type agentRepo struct{ db *sqlx.DB }

var _ repository.AgentRepository = agentRepo{}

type agentRow struct {
	ID                  string  `db:"id"`
	ProjectID           string  `db:"project_id"`
	Name                string  `db:"name"`
	Description         string  `db:"description"`
	Status              string  `db:"status"`
	MaxConcurrentTasks  int     `db:"max_concurrent_tasks"`
	CurrentWorkload     int     `db:"current_workload"`
	AverageTaskDuration float64 `db:"average_task_duration"`
	SuccessRate         float64 `db:"success_rate"`
	Capabilities        []byte  `db:"capabilities"`
	AssignedProjects    []byte  `db:"assigned_projects"`
	AssignedTrees       []byte  `db:"assigned_trees"`
	ActiveTasks         []byte  `db:"active_tasks"`
	CompletedTasks      []byte  `db:"completed_tasks"`
}

func (r agentRow) toDomain() (*domain.Agent, error) {
	a := &domain.Agent{
		ID:                  ids.AgentID(r.ID),
		ProjectID:           ids.ProjectID(r.ProjectID),
		Name:                r.Name,
		Description:         r.Description,
		Status:              ids.AgentStatus(r.Status),
		MaxConcurrentTasks:  r.MaxConcurrentTasks,
		CurrentWorkload:     r.CurrentWorkload,
		AverageTaskDuration: r.AverageTaskDuration,
		SuccessRate:         r.SuccessRate,
	}
	var caps []string
	if err := scanJSON(r.Capabilities, &caps); err != nil {
		return nil, fmt.Errorf("decoding capabilities: %w", err)
	}
	for _, c := range caps {
		a.Capabilities = append(a.Capabilities, ids.Capability(c))
	}
	var projects []string
	if err := scanJSON(r.AssignedProjects, &projects); err != nil {
		return nil, fmt.Errorf("decoding assigned_projects: %w", err)
	}
	for _, p := range projects {
		a.AssignedProjects = append(a.AssignedProjects, ids.ProjectID(p))
	}
	var trees []string
	if err := scanJSON(r.AssignedTrees, &trees); err != nil {
		return nil, fmt.Errorf("decoding assigned_trees: %w", err)
	}
	for _, t := range trees {
		a.AssignedTrees = append(a.AssignedTrees, ids.BranchID(t))
	}
	var active []string
	if err := scanJSON(r.ActiveTasks, &active); err != nil {
		return nil, fmt.Errorf("decoding active_tasks: %w", err)
	}
	for _, t := range active {
		a.ActiveTasks = append(a.ActiveTasks, ids.TaskID(t))
	}
	var completed []string
	if err := scanJSON(r.CompletedTasks, &completed); err != nil {
		return nil, fmt.Errorf("decoding completed_tasks: %w", err)
	}
	for _, t := range completed {
		a.CompletedTasks = append(a.CompletedTasks, ids.TaskID(t))
	}
	return a, nil
}

func (r agentRepo) Get(ctx context.Context, id ids.AgentID) (*domain.Agent, error) {
	ex := execFor(ctx, r.db)
	var row agentRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, project_id, name, description, status, max_concurrent_tasks,
		current_workload, average_task_duration, success_rate, capabilities, assigned_projects, assigned_trees,
		active_tasks, completed_tasks FROM agents WHERE id = $1`, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("agent.get", "agent", string(id))
		}
		return nil, dbErr("agent.get", err)
	}
	return row.toDomain()
}

func (r agentRepo) Create(ctx context.Context, a *domain.Agent) error {
	ex := execFor(ctx, r.db)
	caps := idStrings(a.Capabilities, func(c ids.Capability) string { return string(c) })
	projects := idStrings(a.AssignedProjects, func(p ids.ProjectID) string { return string(p) })
	trees := idStrings(a.AssignedTrees, func(t ids.BranchID) string { return string(t) })
	active := idStrings(a.ActiveTasks, func(t ids.TaskID) string { return string(t) })
	completed := idStrings(a.CompletedTasks, func(t ids.TaskID) string { return string(t) })

	capsJSON, _ := toJSON(caps)
	projectsJSON, _ := toJSON(projects)
	treesJSON, _ := toJSON(trees)
	activeJSON, _ := toJSON(active)
	completedJSON, _ := toJSON(completed)

	_, err := ex.ExecContext(ctx, `INSERT INTO agents
		(id, project_id, name, description, status, max_concurrent_tasks, current_workload, average_task_duration,
		 success_rate, capabilities, assigned_projects, assigned_trees, active_tasks, completed_tasks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		string(a.ID), string(a.ProjectID), a.Name, a.Description, string(a.Status), a.MaxConcurrentTasks,
		a.CurrentWorkload, a.AverageTaskDuration, a.SuccessRate, capsJSON, projectsJSON, treesJSON, activeJSON, completedJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "agent.create", fmt.Sprintf("agent %q already exists", a.ID))
		}
		return dbErr("agent.create", err)
	}
	return nil
}

func (r agentRepo) Update(ctx context.Context, a *domain.Agent) error {
	ex := execFor(ctx, r.db)
	caps := idStrings(a.Capabilities, func(c ids.Capability) string { return string(c) })
	projects := idStrings(a.AssignedProjects, func(p ids.ProjectID) string { return string(p) })
	trees := idStrings(a.AssignedTrees, func(t ids.BranchID) string { return string(t) })
	active := idStrings(a.ActiveTasks, func(t ids.TaskID) string { return string(t) })
	completed := idStrings(a.CompletedTasks, func(t ids.TaskID) string { return string(t) })

	capsJSON, _ := toJSON(caps)
	projectsJSON, _ := toJSON(projects)
	treesJSON, _ := toJSON(trees)
	activeJSON, _ := toJSON(active)
	completedJSON, _ := toJSON(completed)

	res, err := ex.ExecContext(ctx, `UPDATE agents SET name=$2, description=$3, status=$4, max_concurrent_tasks=$5,
		current_workload=$6, average_task_duration=$7, success_rate=$8, capabilities=$9, assigned_projects=$10,
		assigned_trees=$11, active_tasks=$12, completed_tasks=$13 WHERE id=$1`,
		string(a.ID), a.Name, a.Description, string(a.Status), a.MaxConcurrentTasks, a.CurrentWorkload,
		a.AverageTaskDuration, a.SuccessRate, capsJSON, projectsJSON, treesJSON, activeJSON, completedJSON)
	if err != nil {
		return dbErr("agent.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("agent.update", "agent", string(a.ID))
	}
	return nil
}

func (r agentRepo) Delete(ctx context.Context, id ids.AgentID) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, string(id))
	if err != nil {
		return dbErr("agent.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("agent.delete", "agent", string(id))
	}
	return nil
}

func (r agentRepo) ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Agent, error) {
	ex := execFor(ctx, r.db)
	var rows []agentRow
	err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, project_id, name, description, status, max_concurrent_tasks,
		current_workload, average_task_duration, success_rate, capabilities, assigned_projects, assigned_trees,
		active_tasks, completed_tasks FROM agents WHERE project_id = $1 ORDER BY id`, string(projectID))
	if err != nil {
		return nil, dbErr("agent.listByProject", err)
	}
	out := make([]*domain.Agent, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r agentRepo) Exists(ctx context.Context, id ids.AgentID) (bool, error) {
	ex := execFor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, `SELECT COUNT(*) FROM agents WHERE id = $1`, string(id)); err != nil {
		return false, dbErr("agent.exists", err)
	}
	return n > 0, nil
}

func idStrings[T any](in []T, conv func(T) string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, conv(v))
	}
	return out
}
