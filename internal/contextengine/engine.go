// Package contextengine implements the Hierarchical Context Engine (spec.md
// §4.2, component C4): four-level create/get/update/delete/list,
// parent-existence validation with auto-creation of missing ancestors,
// inheritance resolution with merge rules, a delegation queue, and an
// optional inheritance cache. Every operation is backing-agnostic — it only
// talks to the repository.Store boundary.
package contextengine

import (
	"context"
	"fmt"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// Engine is the C4 use-case implementation.
type Engine struct {
	store        *repository.Store
	clock        clock.Clock
	cacheEnabled bool
	cacheTTL     time.Duration
}

// New builds a context engine over store. cacheEnabled/cacheTTL implement
// the performance.cache.* feature flags of spec.md §6.3; the engine must
// (and does) behave identically with the cache disabled (spec.md §4.2.4).
func New(store *repository.Store, c clock.Clock, cacheEnabled bool, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Engine{store: store, clock: c, cacheEnabled: cacheEnabled, cacheTTL: cacheTTL}
}

// InheritanceMeta is the `_inheritance` metadata block spec.md §4.2.2
// attaches to a resolved response.
type InheritanceMeta struct {
	Chain            []ids.Level
	ResolvedAt       time.Time
	InheritanceDepth int
	Stale            bool
}

// Create implements spec.md §4.2's create operation.
func (e *Engine) Create(ctx context.Context, level ids.Level, id ids.ContextID, data domain.Doc, userID, projectID *string) (*domain.AnyContext, error) {
	if _, err := ids.ParseLevel(string(level)); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperr.New(apperr.CodeValidation, "context.create", "id must not be empty")
	}

	if level == ids.LevelGlobal {
		if string(id) != ids.GlobalSingletonID {
			return nil, apperr.New(apperr.CodeValidation, "context.create", fmt.Sprintf("global context id must be %q", ids.GlobalSingletonID))
		}
		exists, err := e.store.Contexts.Exists(ctx, ids.LevelGlobal, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.New(apperr.CodeAlreadyExists, "context.create", "global context already exists")
		}
		return e.persistCreate(ctx, level, id, data)
	}

	exists, err := e.store.Contexts.Exists(ctx, level, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.CodeAlreadyExists, "context.create", fmt.Sprintf("%s context %q already exists", level, id))
	}

	parentLevel, _ := level.Parent()
	parentID, ok := e.deriveParentID(ctx, level, id, data, projectID)
	parentExists := false
	if ok {
		parentExists, err = e.store.Contexts.Exists(ctx, parentLevel, parentID)
		if err != nil {
			return nil, err
		}
	}
	if !ok || !parentExists {
		if aerr := e.ensureAncestorChain(ctx, level, id, data, projectID); aerr != nil {
			return nil, apperr.New(apperr.CodeHierarchyViolation, "context.create",
				fmt.Sprintf("required ancestor chain for %s context %q is incomplete: %v", level, id, aerr))
		}
	}

	return e.persistCreate(ctx, level, id, data)
}

func (e *Engine) persistCreate(ctx context.Context, level ids.Level, id ids.ContextID, data domain.Doc) (*domain.AnyContext, error) {
	mp, rest := splitMetaAndFlags(data)
	now := e.clock.Now()
	rec := &domain.AnyContext{
		ContextRecord: domain.ContextRecord{
			ID:        id,
			Level:     level,
			Version:   1,
			Metadata:  nonNilDoc(mp.metadata),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Data: rest,
	}
	if mp.inheritanceDisabled != nil {
		rec.InheritanceDisabled = *mp.inheritanceDisabled
	}
	if mp.forceLocalOnly != nil {
		rec.ForceLocalOnly = *mp.forceLocalOnly
	}
	if err := e.store.Contexts.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func nonNilDoc(d domain.Doc) domain.Doc {
	if d == nil {
		return domain.Doc{}
	}
	return d
}

// Get implements spec.md §4.2's get operation. When includeInherited is
// false it returns the raw document for (level, id); otherwise it resolves
// the full ancestor chain per §4.2.2.
func (e *Engine) Get(ctx context.Context, level ids.Level, id ids.ContextID, includeInherited, forceRefresh bool) (*domain.AnyContext, *InheritanceMeta, error) {
	if !includeInherited {
		c, err := e.store.Contexts.Get(ctx, level, id)
		return c, nil, err
	}
	return e.resolveInherited(ctx, level, id, forceRefresh)
}

// Resolve implements spec.md §4.2's resolve operation — identical to
// Get(include_inherited=true); the caller marks `resolved=true` on the
// envelope.
func (e *Engine) Resolve(ctx context.Context, level ids.Level, id ids.ContextID, forceRefresh bool) (*domain.AnyContext, *InheritanceMeta, error) {
	return e.resolveInherited(ctx, level, id, forceRefresh)
}

func (e *Engine) resolveInherited(ctx context.Context, level ids.Level, id ids.ContextID, forceRefresh bool) (*domain.AnyContext, *InheritanceMeta, error) {
	now := e.clock.Now()

	if e.cacheEnabled && !forceRefresh {
		if entry, hit, err := e.store.Cache.Get(ctx, level, id); err == nil && hit {
			nodes, lerr := e.loadUpChain(ctx, level, id)
			if lerr == nil && len(nodes) > 0 {
				if depsHash(nodes) == entry.DependenciesHash && now.Before(entry.ExpiresAt) {
					entry.HitCount++
					_ = e.store.Cache.Put(ctx, entry)
					meta := &InheritanceMeta{Chain: chainLevels(nodes), ResolvedAt: now, InheritanceDepth: len(nodes)}
					leaf := nodes[0].ctx
					result := &domain.AnyContext{ContextRecord: leaf.ContextRecord, Data: entry.Merged.Clone()}
					return result, meta, nil
				}
			}
		}
	}

	nodes, err := e.loadUpChain(ctx, level, id)
	if err != nil {
		return nil, nil, err
	}
	if len(nodes) == 0 {
		return nil, nil, apperr.New(apperr.CodeNotFound, "context.resolve", fmt.Sprintf("context %s:%s not found", level, id))
	}

	merged := mergeChainDoc(nodes)
	leaf := nodes[0].ctx
	result := &domain.AnyContext{ContextRecord: leaf.ContextRecord, Data: merged}
	meta := &InheritanceMeta{Chain: chainLevels(nodes), ResolvedAt: now, InheritanceDepth: len(nodes)}

	if e.cacheEnabled {
		entry := &domain.InheritanceCacheEntry{
			Level:            level,
			ID:               id,
			Merged:           merged.Clone(),
			DependenciesHash: depsHash(nodes),
			ResolutionPath:   resolutionPath(nodes),
			ExpiresAt:        now.Add(e.cacheTTL),
		}
		_ = e.store.Cache.Put(ctx, entry)
	}
	return result, meta, nil
}

// Update implements spec.md §4.2's update operation and §4.2.1's merge
// semantics.
func (e *Engine) Update(ctx context.Context, level ids.Level, id ids.ContextID, data domain.Doc, propagate bool) (*domain.AnyContext, error) {
	existing, err := e.store.Contexts.Get(ctx, level, id)
	if err != nil {
		return nil, err
	}
	if err := validateKnownKeys(level, data); err != nil {
		return nil, err
	}
	mp, rest := splitMetaAndFlags(data)
	if mp.metadata != nil {
		existing.Metadata = DeepMerge(nonNilDoc(existing.Metadata), mp.metadata)
	}
	if mp.inheritanceDisabled != nil {
		existing.InheritanceDisabled = *mp.inheritanceDisabled
	}
	if mp.forceLocalOnly != nil {
		existing.ForceLocalOnly = *mp.forceLocalOnly
	}
	existing.Data = DeepMerge(existing.Data, rest)
	existing.Version++
	existing.UpdatedAt = e.clock.Now()

	if err := e.store.Contexts.Update(ctx, existing); err != nil {
		return nil, err
	}
	if propagate && e.cacheEnabled {
		_ = e.store.Cache.InvalidatePath(ctx, id)
	}
	return existing, nil
}

// AddInsight implements spec.md §4.2's add_insight operation.
func (e *Engine) AddInsight(ctx context.Context, level ids.Level, id ids.ContextID, content, category, importance, agent string) (*domain.AnyContext, error) {
	if content == "" {
		return nil, apperr.New(apperr.CodeValidation, "context.add_insight", "content must not be empty")
	}
	rec, err := e.store.Contexts.Get(ctx, level, id)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	rec.Insights = append(rec.Insights, domain.Insight{
		Content: content, Category: category, Importance: importance, Agent: agent, Timestamp: now,
	})
	rec.Version++
	rec.UpdatedAt = now
	if err := e.store.Contexts.Update(ctx, rec); err != nil {
		return nil, err
	}
	if e.cacheEnabled {
		_ = e.store.Cache.InvalidatePath(ctx, id)
	}
	return rec, nil
}

// AddProgress implements spec.md §4.2's add_progress operation.
func (e *Engine) AddProgress(ctx context.Context, level ids.Level, id ids.ContextID, content, agent string) (*domain.AnyContext, error) {
	if content == "" {
		return nil, apperr.New(apperr.CodeValidation, "context.add_progress", "content must not be empty")
	}
	rec, err := e.store.Contexts.Get(ctx, level, id)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	rec.ProgressNotes = append(rec.ProgressNotes, domain.ProgressNote{Content: content, Agent: agent, Timestamp: now})
	rec.Version++
	rec.UpdatedAt = now
	if err := e.store.Contexts.Update(ctx, rec); err != nil {
		return nil, err
	}
	if e.cacheEnabled {
		_ = e.store.Cache.InvalidatePath(ctx, id)
	}
	return rec, nil
}

// List implements spec.md §4.2's list operation.
func (e *Engine) List(ctx context.Context, level ids.Level, f repository.ContextFilters) ([]*domain.AnyContext, error) {
	return e.store.Contexts.List(ctx, level, f)
}

// Delete implements spec.md §4.2's delete operation, cascading to child
// contexts along the ownership chain of §3.4.
func (e *Engine) Delete(ctx context.Context, level ids.Level, id ids.ContextID) error {
	exists, err := e.store.Contexts.Exists(ctx, level, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.CodeNotFound, "context.delete", fmt.Sprintf("%s context %q not found", level, id))
	}

	switch level {
	case ids.LevelGlobal:
		projects, _ := e.store.Contexts.List(ctx, ids.LevelProject, repository.ContextFilters{})
		for _, p := range projects {
			_ = e.Delete(ctx, ids.LevelProject, p.ID)
		}
	case ids.LevelProject:
		branches, _ := e.store.Contexts.List(ctx, ids.LevelBranch, repository.ContextFilters{})
		for _, b := range branches {
			if parent, ok := e.deriveParentID(ctx, ids.LevelBranch, b.ID, b.Data, nil); ok && parent == id {
				_ = e.Delete(ctx, ids.LevelBranch, b.ID)
			}
		}
	case ids.LevelBranch:
		bid := ids.BranchID(id)
		tasks, _ := e.store.Contexts.List(ctx, ids.LevelTask, repository.ContextFilters{BranchID: &bid})
		for _, t := range tasks {
			_ = e.Delete(ctx, ids.LevelTask, t.ID)
		}
	}

	if e.cacheEnabled {
		_ = e.store.Cache.InvalidatePath(ctx, id)
	}
	return e.store.Contexts.Delete(ctx, level, id)
}
