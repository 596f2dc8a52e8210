package contextengine

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
)

// delegationDedupWindow is the idempotency window a repeat delegation with
// identical (source, target, data) collapses into the existing record
// within, per SPEC_FULL.md's context delegation queue section.
const delegationDedupWindow = 60 * time.Second

// Delegate implements spec.md §4.2.5: queue a request to propagate data from
// a descendant context up to one of its ancestors. Delegations are never
// auto-applied; a human or supervising agent must later approve/process one.
func (e *Engine) Delegate(ctx context.Context, sourceLevel ids.Level, sourceID ids.ContextID, targetLevel ids.Level, data domain.Doc, reason string) (*domain.Delegation, error) {
	if targetLevel.Depth() >= sourceLevel.Depth() {
		return nil, apperr.New(apperr.CodeValidation, "context.delegate",
			fmt.Sprintf("delegation target level %q must be an ancestor of source level %q", targetLevel, sourceLevel))
	}

	targetID, ok := e.ancestorID(ctx, sourceLevel, sourceID, targetLevel)
	if !ok {
		return nil, apperr.New(apperr.CodeHierarchyViolation, "context.delegate",
			fmt.Sprintf("cannot resolve %s ancestor of %s context %q", targetLevel, sourceLevel, sourceID))
	}

	hash := dataHash(data)
	now := e.clock.Now()

	if existing, err := e.store.Delegations.FindRecentByHash(ctx, sourceID, targetID, hash, delegationDedupWindow, now); err == nil && existing != nil {
		return existing, nil
	}

	d := &domain.Delegation{
		ID:              ids.New(),
		SourceLevel:     sourceLevel,
		SourceID:        sourceID,
		TargetLevel:     targetLevel,
		TargetID:        targetID,
		DelegatedData:   data.Clone(),
		Reason:          reason,
		TriggerType:     domain.TriggerManual,
		AutoDelegated:   false,
		ConfidenceScore: 1.0,
		DataHash:        hash,
		CreatedAt:       now,
	}
	if err := e.store.Delegations.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ancestorID walks up from (level, id) one level at a time until it reaches
// targetLevel, reusing deriveParentID's existing-context/real-entity
// discovery so delegation target resolution follows the same rules as
// inheritance-chain walking.
func (e *Engine) ancestorID(ctx context.Context, level ids.Level, id ids.ContextID, targetLevel ids.Level) (ids.ContextID, bool) {
	curLevel, curID := level, id
	for curLevel != targetLevel {
		parentLevel, hasParent := curLevel.Parent()
		if !hasParent {
			return "", false
		}
		var hint domain.Doc
		if c, err := e.store.Contexts.Get(ctx, curLevel, curID); err == nil {
			hint = c.Data
		}
		parentID, ok := e.deriveParentID(ctx, curLevel, curID, hint, nil)
		if !ok {
			return "", false
		}
		curLevel, curID = parentLevel, parentID
	}
	return curID, true
}

// dataHash fingerprints a delegation payload for the dedup window. JSON
// marshaling of map[string]any sorts keys, so this is deterministic across
// calls with the same logical content (spec.md §9).
func dataHash(data domain.Doc) string {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", data))
	}
	h := fnv.New64a()
	h.Write(b)
	return fmt.Sprintf("%x", h.Sum64())
}
