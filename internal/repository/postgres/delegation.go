package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

type delegationRepo struct{ db *sqlx.DB }

var _ repository.DelegationRepository = delegationRepo{}

type delegationRow struct {
	ID              string         `db:"id"`
	SourceLevel     string         `db:"source_level"`
	SourceID        string         `db:"source_id"`
	TargetLevel     string         `db:"target_level"`
	TargetID        string         `db:"target_id"`
	DelegatedData   []byte         `db:"delegated_data"`
	Reason          string         `db:"reason"`
	TriggerType     string         `db:"trigger_type"`
	AutoDelegated   bool           `db:"auto_delegated"`
	ConfidenceScore float64        `db:"confidence_score"`
	Processed       bool           `db:"processed"`
	Approved        bool           `db:"approved"`
	ProcessedBy     string         `db:"processed_by"`
	DataHash        string         `db:"data_hash"`
	CreatedAt       sql.NullTime   `db:"created_at"`
	ProcessedAt     sql.NullTime   `db:"processed_at"`
}

func (r delegationRow) toDomain() (*domain.Delegation, error) {
	d := &domain.Delegation{
		ID:              r.ID,
		SourceLevel:     ids.Level(r.SourceLevel),
		SourceID:        ids.ContextID(r.SourceID),
		TargetLevel:     ids.Level(r.TargetLevel),
		TargetID:        ids.ContextID(r.TargetID),
		Reason:          r.Reason,
		TriggerType:     domain.TriggerType(r.TriggerType),
		AutoDelegated:   r.AutoDelegated,
		ConfidenceScore: r.ConfidenceScore,
		Processed:       r.Processed,
		Approved:        r.Approved,
		ProcessedBy:     r.ProcessedBy,
		DataHash:        r.DataHash,
		CreatedAt:       r.CreatedAt.Time,
	}
	if r.ProcessedAt.Valid {
		d.ProcessedAt = &r.ProcessedAt.Time
	}
	if err := scanJSON(r.DelegatedData, &d.DelegatedData); err != nil {
		return nil, err
	}
	return d, nil
}

func (r delegationRepo) Create(ctx context.Context, d *domain.Delegation) error {
	ex := execFor(ctx, r.db)
	dataJSON, err := toJSON(d.DelegatedData)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO context_delegations
		(id, source_level, source_id, target_level, target_id, delegated_data, reason, trigger_type,
		 auto_delegated, confidence_score, processed, approved, processed_by, data_hash, created_at, processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		d.ID, string(d.SourceLevel), string(d.SourceID), string(d.TargetLevel), string(d.TargetID),
		dataJSON, d.Reason, string(d.TriggerType), d.AutoDelegated, d.ConfidenceScore, d.Processed,
		d.Approved, d.ProcessedBy, d.DataHash, d.CreatedAt, d.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, "delegation.create", "delegation "+d.ID+" already exists")
		}
		return dbErr("delegation.create", err)
	}
	return nil
}

func (r delegationRepo) Get(ctx context.Context, id string) (*domain.Delegation, error) {
	ex := execFor(ctx, r.db)
	var row delegationRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, source_level, source_id, target_level, target_id,
		delegated_data, reason, trigger_type, auto_delegated, confidence_score, processed, approved,
		processed_by, data_hash, created_at, processed_at FROM context_delegations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("delegation.get", "delegation", id)
		}
		return nil, dbErr("delegation.get", err)
	}
	return row.toDomain()
}

func (r delegationRepo) FindRecentByHash(ctx context.Context, sourceID, targetID ids.ContextID, hash string, window time.Duration, now time.Time) (*domain.Delegation, error) {
	ex := execFor(ctx, r.db)
	var row delegationRow
	err := sqlx.GetContext(ctx, ex, &row, `SELECT id, source_level, source_id, target_level, target_id,
		delegated_data, reason, trigger_type, auto_delegated, confidence_score, processed, approved,
		processed_by, data_hash, created_at, processed_at FROM context_delegations
		WHERE source_id = $1 AND target_id = $2 AND data_hash = $3 AND created_at >= $4
		ORDER BY created_at DESC LIMIT 1`,
		string(sourceID), string(targetID), hash, now.Add(-window))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr("delegation.findRecentByHash", err)
	}
	return row.toDomain()
}

func (r delegationRepo) List(ctx context.Context, targetLevel ids.Level) ([]*domain.Delegation, error) {
	ex := execFor(ctx, r.db)
	var rows []delegationRow
	err := sqlx.SelectContext(ctx, ex, &rows, `SELECT id, source_level, source_id, target_level, target_id,
		delegated_data, reason, trigger_type, auto_delegated, confidence_score, processed, approved,
		processed_by, data_hash, created_at, processed_at FROM context_delegations
		WHERE target_level = $1 ORDER BY created_at`, string(targetLevel))
	if err != nil {
		return nil, dbErr("delegation.list", err)
	}
	out := make([]*domain.Delegation, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
