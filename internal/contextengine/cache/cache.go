// Package cache implements the C4.2.4 inheritance cache as a bounded,
// process-wide LRU keyed by (level, id) — grounded on the pack's use of
// hashicorp/golang-lru (jordigilh-kubernaut, cklxx-elephant.ai) for
// in-process ephemeral caching. It is an optimization only: every caller in
// internal/contextengine must (and does) behave identically with a cache
// miss, per spec.md §4.2.4 and §5.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/repository"
)

// DefaultSize is the default number of resolved chains the cache retains.
// An inheritance resolution document is small (a merged JSON map per
// context level) so a few thousand entries is a modest memory budget.
const DefaultSize = 4096

// LRU is a size-bounded InheritanceCacheRepository implementation.
type LRU struct {
	mu sync.Mutex
	c  *lru.Cache[string, *domain.InheritanceCacheEntry]
}

var _ repository.InheritanceCacheRepository = (*LRU)(nil)

// New builds an LRU-backed cache holding at most size entries. size <= 0
// falls back to DefaultSize.
func New(size int) *LRU {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, *domain.InheritanceCacheEntry](size)
	if err != nil {
		// Only returns an error for size <= 0, which is excluded above.
		panic(err)
	}
	return &LRU{c: c}
}

func key(level ids.Level, id ids.ContextID) string {
	return string(level) + ":" + string(id)
}

// Get returns the cached entry for (level, id), if present and not marked
// invalidated. The LRU eviction itself handles capacity; Invalidated marks
// logical staleness written by InvalidatePath.
func (l *LRU) Get(ctx context.Context, level ids.Level, id ids.ContextID) (*domain.InheritanceCacheEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.c.Get(key(level, id))
	if !ok || e.Invalidated {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// Put stores entry, evicting the least-recently-used entry if the cache is
// at capacity.
func (l *LRU) Put(ctx context.Context, entry *domain.InheritanceCacheEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *entry
	l.c.Add(key(entry.Level, entry.ID), &cp)
	return nil
}

// InvalidatePath marks every cached entry whose ResolutionPath contains
// node as invalidated (spec.md §4.2.4 "update/delete with propagate=true").
// Entries remain in the LRU (so hit-count/recency bookkeeping survives)
// but are no longer served as hits.
func (l *LRU) InvalidatePath(ctx context.Context, node ids.ContextID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range l.c.Keys() {
		e, ok := l.c.Peek(k)
		if !ok {
			continue
		}
		for _, p := range e.ResolutionPath {
			if p == node {
				e.Invalidated = true
				break
			}
		}
	}
	return nil
}
