package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

type taskRepo struct{ db *sqlx.DB }

var _ repository.TaskRepository = taskRepo{}

// taskRow mirrors the `tasks` table (spec.md §6.4); task_assignees,
// task_dependencies and task_labels are separate join tables, loaded and
// saved alongside it so domain.Task stays a single flat struct.
type taskRow struct {
	ID                 string         `db:"id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	BranchID           string         `db:"branch_id"`
	Status             string         `db:"status"`
	Priority           string         `db:"priority"`
	Details            string         `db:"details"`
	EstimatedEffort    string         `db:"estimated_effort"`
	DueDate            sql.NullTime   `db:"due_date"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
	ContextID          sql.NullString `db:"context_id"`
	ProgressPercentage int            `db:"progress_percentage"`
	CompletionSummary  string         `db:"completion_summary"`
	TestingNotes       string         `db:"testing_notes"`
}

func (r taskRow) toDomain(assignees, labels, deps, subtasks []string) *domain.Task {
	t := &domain.Task{
		ID:                 ids.TaskID(r.ID),
		Title:              r.Title,
		Description:        r.Description,
		BranchID:           ids.BranchID(r.BranchID),
		Status:             ids.TaskStatus(r.Status),
		Priority:           ids.Priority(r.Priority),
		Details:            r.Details,
		EstimatedEffort:    r.EstimatedEffort,
		CreatedAt:          r.CreatedAt.Time,
		UpdatedAt:          r.UpdatedAt.Time,
		ProgressPercentage: r.ProgressPercentage,
		CompletionSummary:  r.CompletionSummary,
		TestingNotes:       r.TestingNotes,
	}
	if r.DueDate.Valid {
		t.DueDate = &r.DueDate.Time
	}
	if r.ContextID.Valid {
		cid := ids.ContextID(r.ContextID.String)
		t.ContextID = &cid
	}
	for _, a := range assignees {
		t.Assignees = append(t.Assignees, ids.AgentID(a))
	}
	t.Labels = labels
	for _, d := range deps {
		t.Dependencies = append(t.Dependencies, ids.TaskID(d))
	}
	for _, s := range subtasks {
		t.Subtasks = append(t.Subtasks, ids.SubtaskID(s))
	}
	return t
}

func notFound(op, kind, id string) error {
	return apperr.New(apperr.CodeNotFound, op, fmt.Sprintf("%s %q not found", kind, id))
}

func dbErr(op string, err error) error {
	return apperr.Wrap(apperr.CodeDatabaseError, op, "database operation failed", err)
}

func (r taskRepo) Get(ctx context.Context, id ids.TaskID) (*domain.Task, error) {
	return r.get(ctx, id, "status NOT IN ('archived','cancelled')")
}

func (r taskRepo) GetAnyState(ctx context.Context, id ids.TaskID) (*domain.Task, error) {
	return r.get(ctx, id, "TRUE")
}

func (r taskRepo) get(ctx context.Context, id ids.TaskID, stateFilter string) (*domain.Task, error) {
	ex := execFor(ctx, r.db)
	var row taskRow
	q := fmt.Sprintf(`SELECT id, title, description, branch_id, status, priority, details,
		estimated_effort, due_date, created_at, updated_at, context_id,
		progress_percentage, completion_summary, testing_notes
		FROM tasks WHERE id = $1 AND %s`, stateFilter)
	if err := sqlx.GetContext(ctx, ex, &row, q, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("task.get", "task", string(id))
		}
		return nil, dbErr("task.get", err)
	}

	assignees, err := r.listAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	labels, err := r.listLabels(ctx, id)
	if err != nil {
		return nil, err
	}
	deps, err := r.listDependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	subtasks, err := r.listSubtaskIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(assignees, labels, deps, subtasks), nil
}

func (r taskRepo) listAssignees(ctx context.Context, id ids.TaskID) ([]string, error) {
	ex := execFor(ctx, r.db)
	var out []string
	err := sqlx.SelectContext(ctx, ex, &out, `SELECT agent_id FROM task_assignees WHERE task_id = $1 ORDER BY agent_id`, string(id))
	if err != nil {
		return nil, dbErr("task.listAssignees", err)
	}
	return out, nil
}

func (r taskRepo) listLabels(ctx context.Context, id ids.TaskID) ([]string, error) {
	ex := execFor(ctx, r.db)
	var out []string
	err := sqlx.SelectContext(ctx, ex, &out, `SELECT label FROM task_labels WHERE task_id = $1 ORDER BY label`, string(id))
	if err != nil {
		return nil, dbErr("task.listLabels", err)
	}
	return out, nil
}

func (r taskRepo) listDependencies(ctx context.Context, id ids.TaskID) ([]string, error) {
	ex := execFor(ctx, r.db)
	var out []string
	err := sqlx.SelectContext(ctx, ex, &out, `SELECT depends_on_task_id FROM task_dependencies WHERE task_id = $1 ORDER BY depends_on_task_id`, string(id))
	if err != nil {
		return nil, dbErr("task.listDependencies", err)
	}
	return out, nil
}

func (r taskRepo) listSubtaskIDs(ctx context.Context, id ids.TaskID) ([]string, error) {
	ex := execFor(ctx, r.db)
	var out []string
	err := sqlx.SelectContext(ctx, ex, &out, `SELECT id FROM subtasks WHERE task_id = $1 ORDER BY created_at`, string(id))
	if err != nil {
		return nil, dbErr("task.listSubtaskIDs", err)
	}
	return out, nil
}

func (r taskRepo) Create(ctx context.Context, t *domain.Task) error {
	ex := execFor(ctx, r.db)
	_, err := ex.ExecContext(ctx, `INSERT INTO tasks
		(id, title, description, branch_id, status, priority, details, estimated_effort,
		 due_date, created_at, updated_at, context_id, progress_percentage, completion_summary, testing_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		string(t.ID), t.Title, t.Description, string(t.BranchID), string(t.Status), string(t.Priority),
		t.Details, t.EstimatedEffort, t.DueDate, t.CreatedAt, t.UpdatedAt, nullableContextID(t.ContextID),
		t.ProgressPercentage, t.CompletionSummary, t.TestingNotes)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "task.create", fmt.Sprintf("task %q already exists", t.ID))
		}
		return dbErr("task.create", err)
	}
	if err := r.syncAssignees(ctx, t.ID, t.Assignees); err != nil {
		return err
	}
	if err := r.syncLabels(ctx, t.ID, t.Labels); err != nil {
		return err
	}
	return r.syncDependencies(ctx, t.ID, t.Dependencies)
}

func (r taskRepo) Update(ctx context.Context, t *domain.Task) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `UPDATE tasks SET title=$2, description=$3, branch_id=$4, status=$5,
		priority=$6, details=$7, estimated_effort=$8, due_date=$9, updated_at=$10, context_id=$11,
		progress_percentage=$12, completion_summary=$13, testing_notes=$14 WHERE id=$1`,
		string(t.ID), t.Title, t.Description, string(t.BranchID), string(t.Status), string(t.Priority),
		t.Details, t.EstimatedEffort, t.DueDate, t.UpdatedAt, nullableContextID(t.ContextID),
		t.ProgressPercentage, t.CompletionSummary, t.TestingNotes)
	if err != nil {
		return dbErr("task.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("task.update", "task", string(t.ID))
	}
	if err := r.syncAssignees(ctx, t.ID, t.Assignees); err != nil {
		return err
	}
	if err := r.syncLabels(ctx, t.ID, t.Labels); err != nil {
		return err
	}
	return r.syncDependencies(ctx, t.ID, t.Dependencies)
}

func (r taskRepo) Delete(ctx context.Context, id ids.TaskID) error {
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, string(id))
	if err != nil {
		return dbErr("task.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("task.delete", "task", string(id))
	}
	return nil
}

func (r taskRepo) Exists(ctx context.Context, id ids.TaskID) (bool, error) {
	ex := execFor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, `SELECT COUNT(*) FROM tasks WHERE id = $1`, string(id)); err != nil {
		return false, dbErr("task.exists", err)
	}
	return n > 0, nil
}

func (r taskRepo) List(ctx context.Context, f repository.TaskFilters) ([]*domain.Task, error) {
	ex := execFor(ctx, r.db)
	var b strings.Builder
	b.WriteString(`SELECT DISTINCT t.id FROM tasks t`)
	var joins []string
	var conds []string
	var args []any
	argN := 1

	if f.BranchID != nil {
		conds = append(conds, fmt.Sprintf("t.branch_id = $%d", argN))
		args = append(args, string(*f.BranchID))
		argN++
	}
	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, s := range f.Status {
			statuses[i] = string(s)
		}
		conds = append(conds, fmt.Sprintf("t.status = ANY($%d)", argN))
		args = append(args, pq.Array(statuses))
		argN++
	}
	if len(f.Priority) > 0 {
		priorities := make([]string, len(f.Priority))
		for i, p := range f.Priority {
			priorities[i] = string(p)
		}
		conds = append(conds, fmt.Sprintf("t.priority = ANY($%d)", argN))
		args = append(args, pq.Array(priorities))
		argN++
	}
	if len(f.Assignees) > 0 {
		joins = append(joins, "JOIN task_assignees ta ON ta.task_id = t.id")
		agents := make([]string, len(f.Assignees))
		for i, a := range f.Assignees {
			agents[i] = string(a)
		}
		conds = append(conds, fmt.Sprintf("ta.agent_id = ANY($%d)", argN))
		args = append(args, pq.Array(agents))
		argN++
	}
	if len(f.Labels) > 0 {
		joins = append(joins, "JOIN task_labels tl ON tl.task_id = t.id")
		conds = append(conds, fmt.Sprintf("tl.label = ANY($%d)", argN))
		args = append(args, pq.Array(f.Labels))
		argN++
	}
	if f.Query != "" {
		conds = append(conds, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", argN, argN))
		args = append(args, "%"+f.Query+"%")
		argN++
	}

	for _, j := range joins {
		b.WriteString(" " + j)
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY t.id")
	if f.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
		args = append(args, f.Limit)
	}

	var taskIDs []string
	if err := sqlx.SelectContext(ctx, ex, &taskIDs, b.String(), args...); err != nil {
		return nil, dbErr("task.list", err)
	}

	tasks := make([]*domain.Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := r.Get(ctx, ids.TaskID(id))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r taskRepo) syncAssignees(ctx context.Context, id ids.TaskID, assignees []ids.AgentID) error {
	ex := execFor(ctx, r.db)
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, string(id)); err != nil {
		return dbErr("task.syncAssignees", err)
	}
	for _, a := range assignees {
		if _, err := ex.ExecContext(ctx, `INSERT INTO task_assignees (task_id, agent_id) VALUES ($1,$2)`, string(id), string(a)); err != nil {
			return dbErr("task.syncAssignees", err)
		}
	}
	return nil
}

func (r taskRepo) syncLabels(ctx context.Context, id ids.TaskID, labels []string) error {
	ex := execFor(ctx, r.db)
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id = $1`, string(id)); err != nil {
		return dbErr("task.syncLabels", err)
	}
	for _, l := range labels {
		if _, err := ex.ExecContext(ctx, `INSERT INTO labels (label) VALUES ($1) ON CONFLICT DO NOTHING`, l); err != nil {
			return dbErr("task.syncLabels", err)
		}
		if _, err := ex.ExecContext(ctx, `INSERT INTO task_labels (task_id, label) VALUES ($1,$2)`, string(id), l); err != nil {
			return dbErr("task.syncLabels", err)
		}
	}
	return nil
}

func (r taskRepo) syncDependencies(ctx context.Context, id ids.TaskID, deps []ids.TaskID) error {
	ex := execFor(ctx, r.db)
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = $1`, string(id)); err != nil {
		return dbErr("task.syncDependencies", err)
	}
	for _, d := range deps {
		_, err := ex.ExecContext(ctx, `INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES ($1,$2)
			ON CONFLICT (task_id, depends_on_task_id) DO NOTHING`, string(id), string(d))
		if err != nil {
			return dbErr("task.syncDependencies", err)
		}
	}
	return nil
}

func nullableContextID(id *ids.ContextID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
