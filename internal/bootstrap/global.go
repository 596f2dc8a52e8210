package bootstrap

import (
	"context"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// EnsureGlobalContext implements the C10 bootstrap guarantee (spec.md §3.2
// "Singleton", §4.8, §9 "Global singleton"): the one and only GlobalContext
// is created with defaults at startup if it does not already exist.
// ALREADY_EXISTS is the expected steady-state outcome on every restart
// after the first and is not treated as an error.
func EnsureGlobalContext(ctx context.Context, store *repository.Store, c clock.Clock) error {
	exists, err := store.Contexts.Exists(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	engine := contextengine.New(store, c, false, 0)
	_, err = engine.Create(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), domain.Doc{
		"organization_name": "default",
		"global_settings":   domain.Doc{},
	}, nil, nil)
	if ae := apperr.As(err); ae != nil && ae.Code == apperr.CodeAlreadyExists {
		return nil
	}
	return err
}
