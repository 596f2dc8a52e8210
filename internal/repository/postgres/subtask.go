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

type subtaskRepo struct{ db *sqlx.DB }

var _ repository.SubtaskRepository = subtaskRepo{}

type subtaskRow struct {
	ID                 string         `db:"id"`
	TaskID             string         `db:"task_id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	Status             string         `db:"status"`
	Priority           string         `db:"priority"`
	ProgressPercentage int            `db:"progress_percentage"`
	CompletionSummary  string         `db:"completion_summary"`
	ImpactOnParent     string         `db:"impact_on_parent"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
	CompletedAt        sql.NullTime   `db:"completed_at"`
	Assignees          []byte         `db:"assignees"`
	ProgressNotes      []byte         `db:"progress_notes"`
	Blockers           []byte         `db:"blockers"`
	InsightsFound      []byte         `db:"insights_found"`
}

func (r subtaskRow) toDomain() (*domain.Subtask, error) {
	s := &domain.Subtask{
		ID:                 ids.SubtaskID(r.ID),
		TaskID:             ids.TaskID(r.TaskID),
		Title:              r.Title,
		Description:        r.Description,
		Status:             ids.TaskStatus(r.Status),
		Priority:           ids.Priority(r.Priority),
		ProgressPercentage: r.ProgressPercentage,
		CompletionSummary:  r.CompletionSummary,
		ImpactOnParent:     r.ImpactOnParent,
		CreatedAt:          r.CreatedAt.Time,
		UpdatedAt:          r.UpdatedAt.Time,
	}
	if r.CompletedAt.Valid {
		s.CompletedAt = &r.CompletedAt.Time
	}
	var agents []string
	if err := scanJSON(r.Assignees, &agents); err != nil {
		return nil, fmt.Errorf("decoding assignees: %w", err)
	}
	for _, a := range agents {
		s.Assignees = append(s.Assignees, ids.AgentID(a))
	}
	if err := scanJSON(r.ProgressNotes, &s.ProgressNotes); err != nil {
		return nil, fmt.Errorf("decoding progress_notes: %w", err)
	}
	if err := scanJSON(r.Blockers, &s.Blockers); err != nil {
		return nil, fmt.Errorf("decoding blockers: %w", err)
	}
	if err := scanJSON(r.InsightsFound, &s.InsightsFound); err != nil {
		return nil, fmt.Errorf("decoding insights_found: %w", err)
	}
	return s, nil
}

func (r subtaskRepo) Get(ctx context.Context, id ids.SubtaskID) (*domain.Subtask, error) {
	ex := execFor(ctx, r.db)
	var row subtaskRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, task_id, title, description, status, priority,
		progress_percentage, completion_summary, impact_on_parent, created_at, updated_at, completed_at,
		assignees, progress_notes, blockers, insights_found FROM subtasks WHERE id = $1`, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("subtask.get", "subtask", string(id))
		}
		return nil, dbErr("subtask.get", err)
	}
	return row.toDomain()
}

func (r subtaskRepo) Create(ctx context.Context, s *domain.Subtask) error {
	ex := execFor(ctx, r.db)
	agents := make([]string, 0, len(s.Assignees))
	for _, a := range s.Assignees {
		agents = append(agents, string(a))
	}
	assigneesJSON, err := toJSON(agents)
	if err != nil {
		return fmt.Errorf("encoding assignees: %w", err)
	}
	notesJSON, err := toJSON(s.ProgressNotes)
	if err != nil {
		return fmt.Errorf("encoding progress_notes: %w", err)
	}
	blockersJSON, err := toJSON(s.Blockers)
	if err != nil {
		return fmt.Errorf("encoding blockers: %w", err)
	}
	insightsJSON, err := toJSON(s.InsightsFound)
	if err != nil {
		return fmt.Errorf("encoding insights_found: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO subtasks
		(id, task_id, title, description, status, priority, progress_percentage, completion_summary,
		 impact_on_parent, created_at, updated_at, completed_at, assignees, progress_notes, blockers, insights_found)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		string(s.ID), string(s.TaskID), s.Title, s.Description, string(s.Status), string(s.Priority),
		s.ProgressPercentage, s.CompletionSummary, s.ImpactOnParent, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
		assigneesJSON, notesJSON, blockersJSON, insightsJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "subtask.create", fmt.Sprintf("subtask %q already exists", s.ID))
		}
		return dbErr("subtask.create", err)
	}
	return nil
}

func (r subtaskRepo) Update(ctx context.Context, s *domain.Subtask) error {
	ex := execFor(ctx, r.db)
	agents := make([]string, 0, len(s.Assignees))
	for _, a := range s.Assignees {
		agents = append(agents, string(a))
	}
	assigneesJSON, err := toJSON(agents)
	if err != nil {
		return fmt.Errorf("encoding assignees: %w", err)
	}
	notesJSON, err := toJSON(s.ProgressNotes)
	if err != nil {
		return fmt.Errorf("encoding progress_notes: %w", err)
	}
	blockersJSON, err := toJSON(s.Blockers)
	if err != nil {
		return fmt.Errorf("encoding blockers: %w", err)
	}
	insightsJSON, err := toJSON(s.InsightsFound)
	if err != nil {
		return fmt.Errorf("encoding insights_found: %w", err)
	}
	res, err := ex.ExecContext(ctx, `UPDATE subtasks SET title=$2, description=$3, status=$4, priority=$5,
		progress_percentage=$6, completion_summary=$7, impact_on_parent=$8, updated_at=$9, completed_at=$10,
		assignees=$11, progress_notes=$12, blockers=$13, insights_found=$14 WHERE id=$1`,
		string(s.ID), s.Title, s.Description, string(s.Status), string(s.Priority), s.ProgressPercentage,
		s.CompletionSummary, s.ImpactOnParent, s.UpdatedAt, s.CompletedAt, assigneesJSON, notesJSON, blockersJSON, insightsJSON)
	if err != nil {
		return dbErr("subtask.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("subtask.update", "subtask", string(s.ID))
	}
	return nil
}

func (r subtaskRepo) Delete(ctx context.Context, id ids.SubtaskID) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM subtasks WHERE id = $1`, string(id))
	if err != nil {
		return dbErr("subtask.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("subtask.delete", "subtask", string(id))
	}
	return nil
}

func (r subtaskRepo) ListByTask(ctx context.Context, taskID ids.TaskID) ([]*domain.Subtask, error) {
	ex := execFor(ctx, r.db)
	var rows []subtaskRow
	err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, task_id, title, description, status, priority,
		progress_percentage, completion_summary, impact_on_parent, created_at, updated_at, completed_at,
		assignees, progress_notes, blockers, insights_found FROM subtasks WHERE task_id = $1 ORDER BY created_at`, string(taskID))
	if err != nil {
		return nil, dbErr("subtask.listByTask", err)
	}
	out := make([]*domain.Subtask, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
