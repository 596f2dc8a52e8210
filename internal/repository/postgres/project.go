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

type projectRepo struct{ db *sqlx.DB }

var _ repository.ProjectRepository = projectRepo{}

type projectRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Description string       `db:"description"`
	Status      string       `db:"status"`
	UserID      string       `db:"user_id"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

func (r projectRow) toDomain() *domain.Project {
	return &domain.Project{
		ID:          ids.ProjectID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Status:      ids.EntityStatus(r.Status),
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

func (r projectRepo) Get(ctx context.Context, id ids.ProjectID) (*domain.Project, error) {
	ex := execFor(ctx, r.db)
	var row projectRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, name, description, status, user_id, created_at, updated_at
		FROM projects WHERE id = $1`, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("project.get", "project", string(id))
		}
		return nil, dbErr("project.get", err)
	}
	return row.toDomain(), nil
}

func (r projectRepo) Create(ctx context.Context, p *domain.Project) error {
	ex := execFor(ctx, r.db)
	_, err := ex.ExecContext(ctx, `INSERT INTO projects (id, name, description, status, user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(p.ID), p.Name, p.Description, string(p.Status), p.UserID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "project.create", fmt.Sprintf("project %q already exists", p.ID))
		}
		return dbErr("project.create", err)
	}
	return nil
}

func (r projectRepo) Update(ctx context.Context, p *domain.Project) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `UPDATE projects SET name=$2, description=$3, status=$4, user_id=$5, updated_at=$6
		WHERE id=$1`, string(p.ID), p.Name, p.Description, string(p.Status), p.UserID, p.UpdatedAt)
	if err != nil {
		return dbErr("project.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("project.update", "project", string(p.ID))
	}
	return nil
}

func (r projectRepo) Delete(ctx context.Context, id ids.ProjectID) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, string(id))
	if err != nil {
		return dbErr("project.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("project.delete", "project", string(id))
	}
	return nil
}

func (r projectRepo) List(ctx context.Context) ([]*domain.Project, error) {
	ex := execFor(ctx, r.db)
	var rows []projectRow
	err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, name, description, status, user_id, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, dbErr("project.list", err)
	}
	out := make([]*domain.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r projectRepo) Exists(ctx context.Context, id ids.ProjectID) (bool, error) {
	ex := execFor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, `SELECT COUNT(*) FROM projects WHERE id = $1`, string(id)); err != nil {
		return false, dbErr("project.exists", err)
	}
	return n > 0, nil
}
