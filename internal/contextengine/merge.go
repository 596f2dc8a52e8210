package contextengine

import "github.com/riverforge/contextmcp/internal/domain"

// DeepMerge implements the update/inheritance merge rule of spec.md §4.2.1:
// for each key in patch, if both the existing and new values are maps, merge
// recursively; if both are lists, append; otherwise the new value replaces
// the old one. It never mutates existing or patch.
func DeepMerge(existing, patch domain.Doc) domain.Doc {
	out := existing.Clone()
	if out == nil {
		out = domain.Doc{}
	}
	for k, nv := range patch {
		ev, has := out[k]
		if has {
			if em, ok := asDoc(ev); ok {
				if nm, ok := asDoc(nv); ok {
					out[k] = DeepMerge(em, nm)
					continue
				}
			}
			if el, ok := ev.([]any); ok {
				if nl, ok := nv.([]any); ok {
					merged := make([]any, 0, len(el)+len(nl))
					merged = append(merged, el...)
					merged = append(merged, nl...)
					out[k] = merged
					continue
				}
			}
		}
		out[k] = domain.CloneAny(nv)
	}
	return out
}

// asDoc normalizes map[string]any/domain.Doc values to a domain.Doc so the
// merge logic doesn't have to special-case which concrete map type a
// dynamically-typed JSON document produced.
func asDoc(v any) (domain.Doc, bool) {
	switch t := v.(type) {
	case domain.Doc:
		return t, true
	case map[string]any:
		return domain.Doc(t), true
	default:
		return nil, false
	}
}
