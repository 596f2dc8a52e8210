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

type contextRepo struct{ db *sqlx.DB }

var _ repository.ContextRepository = contextRepo{}

// contextTable names the logical table per level (spec.md §6.4:
// global_contexts, project_contexts, branch_contexts, task_contexts).
func contextTable(level ids.Level) (table string, ok bool) {
	switch level {
	case ids.LevelGlobal:
		return "global_contexts", true
	case ids.LevelProject:
		return "project_contexts", true
	case ids.LevelBranch:
		return "branch_contexts", true
	case ids.LevelTask:
		return "task_contexts", true
	default:
		return "", false
	}
}

type contextRow struct {
	ID                  string       `db:"id"`
	Version             int          `db:"version"`
	InheritanceDisabled bool         `db:"inheritance_disabled"`
	ForceLocalOnly      bool         `db:"force_local_only"`
	Metadata            []byte       `db:"metadata"`
	Insights            []byte       `db:"insights"`
	ProgressNotes       []byte       `db:"progress_notes"`
	Data                []byte       `db:"data"`
	CreatedAt           sql.NullTime `db:"created_at"`
	UpdatedAt           sql.NullTime `db:"updated_at"`
}

func (r contextRow) toDomain(level ids.Level) (*domain.AnyContext, error) {
	c := &domain.AnyContext{
		ContextRecord: domain.ContextRecord{
			ID:                  ids.ContextID(r.ID),
			Level:               level,
			Version:             r.Version,
			InheritanceDisabled: r.InheritanceDisabled,
			ForceLocalOnly:      r.ForceLocalOnly,
			CreatedAt:           r.CreatedAt.Time,
			UpdatedAt:           r.UpdatedAt.Time,
		},
	}
	if err := scanJSON(r.Metadata, &c.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if err := scanJSON(r.Insights, &c.Insights); err != nil {
		return nil, fmt.Errorf("decoding insights: %w", err)
	}
	if err := scanJSON(r.ProgressNotes, &c.ProgressNotes); err != nil {
		return nil, fmt.Errorf("decoding progress_notes: %w", err)
	}
	if err := scanJSON(r.Data, &c.Data); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	return c, nil
}

func (r contextRepo) Get(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.AnyContext, error) {
	table, ok := contextTable(level)
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "context.get", fmt.Sprintf("unknown level %q", level))
	}
	ex := execFor(ctx, r.db)
	var row contextRow
	q := fmt.Sprintf(`SELECT id, version, inheritance_disabled, force_local_only, metadata, insights,
		progress_notes, data, created_at, updated_at FROM %s WHERE id = $1`, table)
	if err := sqlx.GetContext(ctx, ex, &row, q, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("context.get", string(level)+" context", string(id))
		}
		return nil, dbErr("context.get", err)
	}
	return row.toDomain(level)
}

func (r contextRepo) Create(ctx context.Context, c *domain.AnyContext) error {
	table, ok := contextTable(c.Level)
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.create", fmt.Sprintf("unknown level %q", c.Level))
	}
	ex := execFor(ctx, r.db)
	metaJSON, _ := toJSON(c.Metadata)
	insightsJSON, _ := toJSON(c.Insights)
	notesJSON, _ := toJSON(c.ProgressNotes)
	dataJSON, _ := toJSON(c.Data)

	q := fmt.Sprintf(`INSERT INTO %s (id, version, inheritance_disabled, force_local_only, metadata,
		insights, progress_notes, data, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, table)
	_, err := ex.ExecContext(ctx, q, string(c.ID), c.Version, c.InheritanceDisabled, c.ForceLocalOnly,
		metaJSON, insightsJSON, notesJSON, dataJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "context.create", fmt.Sprintf("context %s:%s already exists", c.Level, c.ID))
		}
		return dbErr("context.create", err)
	}
	return nil
}

func (r contextRepo) Update(ctx context.Context, c *domain.AnyContext) error {
	table, ok := contextTable(c.Level)
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.update", fmt.Sprintf("unknown level %q", c.Level))
	}
	ex := execFor(ctx, r.db)
	metaJSON, _ := toJSON(c.Metadata)
	insightsJSON, _ := toJSON(c.Insights)
	notesJSON, _ := toJSON(c.ProgressNotes)
	dataJSON, _ := toJSON(c.Data)

	q := fmt.Sprintf(`UPDATE %s SET version=$2, inheritance_disabled=$3, force_local_only=$4, metadata=$5,
		insights=$6, progress_notes=$7, data=$8, updated_at=$9 WHERE id=$1`, table)
	res, err := ex.ExecContext(ctx, q, string(c.ID), c.Version, c.InheritanceDisabled, c.ForceLocalOnly,
		metaJSON, insightsJSON, notesJSON, dataJSON, c.UpdatedAt)
	if err != nil {
		return dbErr("context.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("context.update", string(c.Level)+" context", string(c.ID))
	}
	return nil
}

func (r contextRepo) Delete(ctx context.Context, level ids.Level, id ids.ContextID) error {
	table, ok := contextTable(level)
	if !ok {
		return apperr.New(apperr.CodeValidation, "context.delete", fmt.Sprintf("unknown level %q", level))
	}
	ex := execFor(ctx, r.db)
	res, err := ex.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), string(id))
	if err != nil {
		return dbErr("context.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("context.delete", string(level)+" context", string(id))
	}
	return nil
}

// List honors ContextFilters by joining through the owning entity table
// (branches for branch contexts, tasks for task contexts) rather than
// duplicating project_id/branch_id onto the context row itself — the same
// ownership internal/contextengine already resolves via
// repository.Store.Branches/Tasks when it needs a parent id.
func (r contextRepo) List(ctx context.Context, level ids.Level, f repository.ContextFilters) ([]*domain.AnyContext, error) {
	table, ok := contextTable(level)
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "context.list", fmt.Sprintf("unknown level %q", level))
	}
	ex := execFor(ctx, r.db)
	cols := `c.id, c.version, c.inheritance_disabled, c.force_local_only, c.metadata, c.insights,
		c.progress_notes, c.data, c.created_at, c.updated_at`
	var q string
	var args []any
	switch {
	case level == ids.LevelBranch && f.ProjectID != nil:
		q = fmt.Sprintf(`SELECT %s FROM %s c JOIN branches b ON b.id = c.id WHERE b.project_id = $1`, cols, table)
		args = append(args, string(*f.ProjectID))
	case level == ids.LevelTask && f.BranchID != nil:
		q = fmt.Sprintf(`SELECT %s FROM %s c JOIN tasks t ON t.id = c.id WHERE t.branch_id = $1`, cols, table)
		args = append(args, string(*f.BranchID))
	default:
		q = fmt.Sprintf(`SELECT %s FROM %s c`, cols, table)
	}
	q += " ORDER BY c.id"

	var rows []contextRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, dbErr("context.list", err)
	}
	out := make([]*domain.AnyContext, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain(level)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r contextRepo) Exists(ctx context.Context, level ids.Level, id ids.ContextID) (bool, error) {
	table, ok := contextTable(level)
	if !ok {
		return false, nil
	}
	ex := execFor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = $1`, table), string(id)); err != nil {
		return false, dbErr("context.exists", err)
	}
	return n > 0, nil
}
