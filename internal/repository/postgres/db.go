package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/riverforge/contextmcp/internal/contextengine/cache"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Open connects to dsn and verifies the connection with a ping, mirroring
// cmd/migrate's sqlx.Open+Ping sequence in the pack (smartramana-developer-mesh).
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// NewRepositoryStore wires a repository.Store backed by db. Every sub-
// repository shares db and resolves the current executor (*sqlx.DB or, when
// inside a UnitOfWork.Do call, the active *sqlx.Tx) from the context.
func NewRepositoryStore(db *sqlx.DB) *repository.Store {
	return &repository.Store{
		Tasks:       taskRepo{db: db},
		Subtasks:    subtaskRepo{db: db},
		Projects:    projectRepo{db: db},
		Branches:    branchRepo{db: db},
		Agents:      agentRepo{db: db},
		Contexts:    contextRepo{db: db},
		Delegations: delegationRepo{db: db},
		Cache:       cache.New(cache.DefaultSize), // postgres backing relies on internal/contextengine/cache's in-process LRU, not a persisted cache table
		UOW:         unitOfWork{db: db},
	}
}

// execKey is the context key a running transaction is stashed under by
// unitOfWork.Do, so every repository method started inside it participates
// in the same transaction without threading a *sqlx.Tx through every call.
type execKey struct{}

// executor is the sqlx surface every repository method needs; *sqlx.DB and
// *sqlx.Tx both satisfy it, and sqlx.GetContext/SelectContext accept it
// directly.
type executor interface {
	sqlx.ExtContext
}

func execFor(ctx context.Context, db *sqlx.DB) executor {
	if tx, ok := ctx.Value(execKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

type unitOfWork struct{ db *sqlx.DB }

// Do runs fn inside a single transaction, rolling back on any error fn
// returns (including a panic, which is re-raised after rollback).
func (u unitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, execKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
