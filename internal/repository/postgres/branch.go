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

type branchRepo struct{ db *sqlx.DB }

var _ repository.BranchRepository = branchRepo{}

type branchRow struct {
	ID                 string         `db:"id"`
	ProjectID          string         `db:"project_id"`
	Name               string         `db:"name"`
	Description        string         `db:"description"`
	AssignedAgentID    sql.NullString `db:"assigned_agent_id"`
	Status             string         `db:"status"`
	Priority           string         `db:"priority"`
	TaskCount          int            `db:"task_count"`
	CompletedTaskCount int            `db:"completed_task_count"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
}

func (r branchRow) toDomain() *domain.Branch {
	b := &domain.Branch{
		ID:                 ids.BranchID(r.ID),
		ProjectID:          ids.ProjectID(r.ProjectID),
		Name:               r.Name,
		Description:        r.Description,
		Status:             ids.EntityStatus(r.Status),
		Priority:           ids.Priority(r.Priority),
		TaskCount:          r.TaskCount,
		CompletedTaskCount: r.CompletedTaskCount,
		CreatedAt:          r.CreatedAt.Time,
		UpdatedAt:          r.UpdatedAt.Time,
	}
	if r.AssignedAgentID.Valid {
		aid := ids.AgentID(r.AssignedAgentID.String)
		b.AssignedAgentID = &aid
	}
	return b
}

func (r branchRepo) Get(ctx context.Context, id ids.BranchID) (*domain.Branch, error) {
	ex := execFor(ctx, r.db)
	var row branchRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, project_id, name, description, assigned_agent_id, status,
		priority, task_count, completed_task_count, created_at, updated_at FROM branches WHERE id = $1`, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("branch.get", "branch", string(id))
		}
		return nil, dbErr("branch.get", err)
	}
	return row.toDomain(), nil
}

func (r branchRepo) Create(ctx context.Context, b *domain.Branch) error {
	ex := execFor(ctx, r.db)
	_, err := ex.ExecContext(ctx, `INSERT INTO branches
		(id, project_id, name, description, assigned_agent_id, status, priority, task_count, completed_task_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(b.ID), string(b.ProjectID), b.Name, b.Description, nullableAgentID(b.AssignedAgentID),
		string(b.Status), string(b.Priority), b.TaskCount, b.CompletedTaskCount, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "branch.create", fmt.Sprintf("branch %q already exists", b.ID))
		}
		return dbErr("branch.create", err)
	}
	return nil
}

func (r branchRepo) Update(ctx context.Context, b *domain.Branch) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `UPDATE branches SET name=$2, description=$3, assigned_agent_id=$4, status=$5,
		priority=$6, task_count=$7, completed_task_count=$8, updated_at=$9 WHERE id=$1`,
		string(b.ID), b.Name, b.Description, nullableAgentID(b.AssignedAgentID), string(b.Status),
		string(b.Priority), b.TaskCount, b.CompletedTaskCount, b.UpdatedAt)
	if err != nil {
		return dbErr("branch.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("branch.update", "branch", string(b.ID))
	}
	return nil
}

func (r branchRepo) Delete(ctx context.Context, id ids.BranchID) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, string(id))
	if err != nil {
		return dbErr("branch.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("branch.delete", "branch", string(id))
	}
	return nil
}

func (r branchRepo) ListByProject(ctx context.Context, projectID ids.ProjectID) ([]*domain.Branch, error) {
	ex := execFor(ctx, r.db)
	var rows []branchRow
	err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, project_id, name, description, assigned_agent_id, status,
		priority, task_count, completed_task_count, created_at, updated_at FROM branches WHERE project_id = $1 ORDER BY created_at`,
		string(projectID))
	if err != nil {
		return nil, dbErr("branch.listByProject", err)
	}
	out := make([]*domain.Branch, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r branchRepo) Exists(ctx context.Context, id ids.BranchID) (bool, error) {
	ex := execFor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, `SELECT COUNT(*) FROM branches WHERE id = $1`, string(id)); err != nil {
		return false, dbErr("branch.exists", err)
	}
	return n > 0, nil
}

func nullableAgentID(id *ids.AgentID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}
