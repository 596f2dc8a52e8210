package contextengine

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
)

// depsHash fingerprints the ancestor chain's (level, id, version) triples so
// resolveInherited can detect a stale cache entry without re-merging the
// whole chain (spec.md §4.2.4).
func depsHash(nodes []chainNode) string {
	h := fnv.New64a()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		fmt.Fprintf(h, "%s:%s:%d;", n.level, n.ctx.ID, n.ctx.Version)
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// chainNode is one link in the ancestor walk built by loadUpChain, ordered
// leaf-first (index 0 is the requested level, the last entry is the
// highest ancestor the walk actually reached).
type chainNode struct {
	level ids.Level
	ctx   *domain.AnyContext
}

// loadUpChain walks from (level, id) up toward global, stopping when it
// reaches global, hits a node with inheritance_disabled or force_local_only
// set (spec.md §4.2.2), or can no longer derive the next ancestor's id. A
// missing ancestor context simply ends the walk early rather than erroring
// — §4.2.2 only specifies the inheritance_disabled/force_local_only early
// stops; an absent ancestor is treated the same way so resolve() degrades
// gracefully instead of failing.
func (e *Engine) loadUpChain(ctx context.Context, level ids.Level, id ids.ContextID) ([]chainNode, error) {
	var nodes []chainNode
	curLevel, curID := level, id
	for {
		c, err := e.store.Contexts.Get(ctx, curLevel, curID)
		if err != nil {
			if ae := apperr.As(err); ae != nil && ae.Code == apperr.CodeNotFound {
				break
			}
			return nil, err
		}
		nodes = append(nodes, chainNode{curLevel, c})
		if curLevel == ids.LevelGlobal || c.InheritanceDisabled || c.ForceLocalOnly {
			break
		}
		parentLevel, hasParent := curLevel.Parent()
		if !hasParent {
			break
		}
		parentID, ok := e.deriveParentID(ctx, curLevel, curID, c.Data, nil)
		if !ok {
			break
		}
		curLevel, curID = parentLevel, parentID
	}
	return nodes, nil
}

// chainLevels returns the levels present in nodes in root-to-leaf order,
// the order spec.md §4.2.2's `_inheritance.chain` is documented in.
func chainLevels(nodes []chainNode) []ids.Level {
	levels := make([]ids.Level, len(nodes))
	for i, n := range nodes {
		levels[len(nodes)-1-i] = n.level
	}
	return levels
}

// resolutionPath returns the context ids present in nodes, used as the
// cache entry's dependency set (spec.md §4.2.4).
func resolutionPath(nodes []chainNode) []ids.ContextID {
	path := make([]ids.ContextID, len(nodes))
	for i, n := range nodes {
		path[i] = n.ctx.ID
	}
	return path
}

// mergeChainDoc folds a leaf-first chain into a single document by applying
// the spec.md §4.2.1 deep-merge rule from the root down to the leaf.
func mergeChainDoc(nodes []chainNode) domain.Doc {
	acc := domain.Doc{}
	for i := len(nodes) - 1; i >= 0; i-- {
		acc = DeepMerge(acc, nodes[i].ctx.Data)
	}
	return acc
}

// stringField reads a non-empty string value for key out of d.
func stringField(d domain.Doc, key string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// deriveParentID determines the id of level's required ancestor. It
// prefers, in order: an explicit fk in hint (the data payload a create/
// update call is carrying), the fk already stored on the existing context
// document, an explicitly supplied projectID (only meaningful for
// level==branch), and finally the real domain entity (Branch/Task) — the
// "discovered project_id if the task's branch exists" case from spec.md
// §4.2.3.
func (e *Engine) deriveParentID(ctx context.Context, level ids.Level, id ids.ContextID, hint domain.Doc, projectIDParam *string) (ids.ContextID, bool) {
	switch level {
	case ids.LevelProject:
		return ids.ContextID(ids.GlobalSingletonID), true
	case ids.LevelBranch:
		if v, ok := stringField(hint, "project_id"); ok {
			return ids.ContextID(v), true
		}
		if existing, err := e.store.Contexts.Get(ctx, ids.LevelBranch, id); err == nil {
			if v, ok := stringField(existing.Data, "project_id"); ok {
				return ids.ContextID(v), true
			}
		}
		if projectIDParam != nil && *projectIDParam != "" {
			return ids.ContextID(*projectIDParam), true
		}
		if b, err := e.store.Branches.Get(ctx, ids.BranchID(id)); err == nil {
			return ids.ContextID(b.ProjectID), true
		}
		return "", false
	case ids.LevelTask:
		if v, ok := stringField(hint, "branch_id"); ok {
			return ids.ContextID(v), true
		}
		if existing, err := e.store.Contexts.Get(ctx, ids.LevelTask, id); err == nil {
			if v, ok := stringField(existing.Data, "branch_id"); ok {
				return ids.ContextID(v), true
			}
		}
		if t, err := e.store.Tasks.Get(ctx, ids.TaskID(id)); err == nil {
			return ids.ContextID(t.BranchID), true
		}
		return "", false
	default:
		return "", false
	}
}

// defaultDataFor builds the default document for an auto-created ancestor
// (spec.md §4.2.3), preferring data discovered from the real domain entity
// of the same id when one exists, and falling back to placeholder values
// otherwise.
func (e *Engine) defaultDataFor(ctx context.Context, level ids.Level, id ids.ContextID) domain.Doc {
	switch level {
	case ids.LevelGlobal:
		return domain.Doc{"organization_name": "default", "global_settings": domain.Doc{}}
	case ids.LevelProject:
		name := string(id)
		if p, err := e.store.Projects.Get(ctx, ids.ProjectID(id)); err == nil {
			name = p.Name
		}
		return domain.Doc{"project_name": name, "project_settings": domain.Doc{}}
	case ids.LevelBranch:
		projectID, gitName := "", "main"
		if b, err := e.store.Branches.Get(ctx, ids.BranchID(id)); err == nil {
			projectID = string(b.ProjectID)
			gitName = b.Name
		}
		return domain.Doc{"project_id": projectID, "git_branch_name": gitName, "branch_settings": domain.Doc{}}
	case ids.LevelTask:
		branchID := ""
		taskData := domain.Doc{}
		if t, err := e.store.Tasks.Get(ctx, ids.TaskID(id)); err == nil {
			branchID = string(t.BranchID)
			taskData = domain.Doc{
				"title":       t.Title,
				"status":      string(t.Status),
				"description": t.Description,
				"priority":    string(t.Priority),
			}
		}
		return domain.Doc{"branch_id": branchID, "task_data": taskData}
	default:
		return domain.Doc{}
	}
}

// ensureGlobal auto-creates the global singleton if it doesn't exist yet
// (spec.md §4.2.3 "Global is always auto-created when missing").
func (e *Engine) ensureGlobal(ctx context.Context) error {
	exists, err := e.store.Contexts.Exists(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.createRaw(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID), e.defaultDataFor(ctx, ids.LevelGlobal, ids.ContextID(ids.GlobalSingletonID)))
}

// ensureAncestorChain recursively auto-creates every missing ancestor of
// (level, id), top-down, using data discovered from the real domain
// entities when possible (spec.md §4.2.3). It returns an error naming the
// first ancestor it could not place when the chain can't be completed.
func (e *Engine) ensureAncestorChain(ctx context.Context, level ids.Level, id ids.ContextID, hint domain.Doc, projectIDParam *string) error {
	if err := e.ensureGlobal(ctx); err != nil {
		return err
	}
	if level == ids.LevelGlobal {
		return nil
	}
	parentLevel, hasParent := level.Parent()
	if !hasParent {
		return nil
	}
	parentID, ok := e.deriveParentID(ctx, level, id, hint, projectIDParam)
	if !ok {
		return fmt.Errorf("cannot determine %s ancestor id for %s context %q", parentLevel, level, id)
	}
	exists, err := e.store.Contexts.Exists(ctx, parentLevel, parentID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := e.ensureAncestorChain(ctx, parentLevel, parentID, domain.Doc{}, projectIDParam); err != nil {
		return err
	}
	defaults := e.defaultDataFor(ctx, parentLevel, parentID)
	if err := e.createRaw(ctx, parentLevel, parentID, defaults); err != nil {
		if ae := apperr.As(err); ae == nil || ae.Code != apperr.CodeAlreadyExists {
			return err
		}
	}
	return nil
}

// createRaw persists a new context document with the given data, bypassing
// the public Create() validation path — used only by the auto-create flow,
// which has already decided the document is well-formed.
func (e *Engine) createRaw(ctx context.Context, level ids.Level, id ids.ContextID, data domain.Doc) error {
	now := e.clock.Now()
	rec := &domain.AnyContext{
		ContextRecord: domain.ContextRecord{
			ID:        id,
			Level:     level,
			Version:   1,
			Metadata:  domain.Doc{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Data: data.Clone(),
	}
	return e.store.Contexts.Create(ctx, rec)
}

// knownDataKeys is the per-level schema used by Update's unknown-field
// rejection (spec.md §9 "reject unknown fields in update where schemas are
// known"). Keys listed here are in addition to the always-allowed
// metadata/inheritance_disabled/force_local_only fields every level shares.
func knownDataKeys(level ids.Level) map[string]bool {
	switch level {
	case ids.LevelGlobal:
		return map[string]bool{"organization_name": true, "global_settings": true}
	case ids.LevelProject:
		return map[string]bool{"project_name": true, "project_settings": true}
	case ids.LevelBranch:
		return map[string]bool{"project_id": true, "git_branch_name": true, "branch_settings": true}
	case ids.LevelTask:
		return map[string]bool{
			"branch_id": true, "task_data": true, "progress": true, "next_steps": true,
			"completion_summary": true, "testing_notes": true, "completed_at": true, "status": true,
		}
	default:
		return nil
	}
}

var alwaysAllowedKeys = map[string]bool{
	"metadata": true, "inheritance_disabled": true, "force_local_only": true,
}

func validateKnownKeys(level ids.Level, data domain.Doc) error {
	known := knownDataKeys(level)
	for k := range data {
		if alwaysAllowedKeys[k] || known[k] {
			continue
		}
		return apperr.New(apperr.CodeValidation, "context.update", fmt.Sprintf("unknown field %q for %s context", k, level))
	}
	return nil
}

// metaPatch holds the always-allowed control fields extracted out of a
// create/update payload before the remainder is merged into Data.
type metaPatch struct {
	metadata            domain.Doc
	inheritanceDisabled *bool
	forceLocalOnly      *bool
}

// splitMetaAndFlags separates metadata/inheritance_disabled/force_local_only
// out of data, returning the extracted control fields and the remaining
// document.
func splitMetaAndFlags(data domain.Doc) (metaPatch, domain.Doc) {
	var mp metaPatch
	rest := domain.Doc{}
	for k, v := range data {
		switch k {
		case "metadata":
			if m, ok := asDoc(v); ok {
				mp.metadata = m
			}
		case "inheritance_disabled":
			if b, ok := v.(bool); ok {
				mp.inheritanceDisabled = &b
			}
		case "force_local_only":
			if b, ok := v.(bool); ok {
				mp.forceLocalOnly = &b
			}
		default:
			rest[k] = domain.CloneAny(v)
		}
	}
	return mp, rest
}
