// Package ensemble reconciles several models' prediction sets into one.
//
// Every operation is pure: it returns a new DocumentSet and leaves its inputs
// untouched.  Documents an operation does not change are shared between input
// and output, so callers must treat documents as immutable.
package ensemble

import (
	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

// Extract projects src down to entities labelled label.  Documents without a
// matching entity are left out of the result.
func Extract(src annotation.DocumentSet, label string) annotation.DocumentSet {
	out := make(annotation.DocumentSet)
	for id, d := range src {
		if d == nil {
			continue
		}
		var matched []annotation.Span
		for _, e := range d.Entities {
			if e.Label == label {
				matched = append(matched, e)
			}
		}
		if len(matched) > 0 {
			out[id] = d.WithEntities(matched)
		}
	}
	return out
}

// Remove strips every entity labelled label.  All documents are kept, even
// when their entity list becomes empty.
func Remove(target annotation.DocumentSet, label string) annotation.DocumentSet {
	out := make(annotation.DocumentSet, len(target))
	for id, d := range target {
		if d == nil {
			continue
		}
		kept := make([]annotation.Span, 0, len(d.Entities))
		for _, e := range d.Entities {
			if e.Label != label {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(d.Entities) {
			out[id] = d
			continue
		}
		out[id] = d.WithEntities(kept)
	}
	return out
}

// RemoveOverlapping drops from each target document every entity that
// overlaps an entity of the interfering document with the same id.  Target
// documents with no interfering counterpart pass through unchanged.
func RemoveOverlapping(target, interfering annotation.DocumentSet) annotation.DocumentSet {
	out := make(annotation.DocumentSet, len(target))
	for id, d := range target {
		if d == nil {
			continue
		}
		other, ok := interfering[id]
		if !ok || other == nil || len(other.Entities) == 0 {
			out[id] = d
			continue
		}
		kept := make([]annotation.Span, 0, len(d.Entities))
		for _, e := range d.Entities {
			if !annotation.OverlapsAny(e, other.Entities) {
				kept = append(kept, e)
			}
		}
		out[id] = d.WithEntities(kept)
	}
	return out
}

// Merge returns the union of base and addition.  For ids present in both,
// addition's entities are appended to base's without dedup or overlap
// resolution, and base's metadata and relations win.  An id only in addition
// brings its own metadata, with empty relations when it has none.
func Merge(base, addition annotation.DocumentSet) annotation.DocumentSet {
	out := make(annotation.DocumentSet, len(base)+len(addition))
	for id, d := range base {
		if d != nil {
			out[id] = d
		}
	}
	for id, add := range addition {
		if add == nil {
			continue
		}
		cur, ok := out[id]
		if !ok {
			out[id] = newFrom(add)
			continue
		}
		if len(add.Entities) == 0 {
			continue
		}
		entities := make([]annotation.Span, 0, len(cur.Entities)+len(add.Entities))
		entities = append(entities, cur.Entities...)
		entities = append(entities, add.Entities...)
		out[id] = cur.WithEntities(entities)
	}
	return out
}

func newFrom(d *annotation.Document) *annotation.Document {
	nd := d.Clone()
	if nd.Metadata == nil {
		nd.Metadata = annotation.Metadata{}
	}
	if nd.Relations == nil {
		nd.Relations = annotation.EmptyRelations()
	}
	return nd
}

// OverwriteClass replaces label in base with src's label entities.  Every base
// entity of label is discarded, as is every base entity of any label that
// overlaps one of src's label entities.
func OverwriteClass(base, src annotation.DocumentSet, label string) annotation.DocumentSet {
	extracted := Extract(src, label)
	return Merge(RemoveOverlapping(Remove(base, label), extracted), extracted)
}

// ReplaceClass discards base's label entities and appends src's, without
// resolving overlaps against other labels.
func ReplaceClass(base, src annotation.DocumentSet, label string) annotation.DocumentSet {
	return Merge(Remove(base, label), Extract(src, label))
}

// OverlayClass adds src's label entities to base, discarding only the base
// entities they overlap.  Base entities of label that do not collide survive.
func OverlayClass(base, src annotation.DocumentSet, label string) annotation.DocumentSet {
	extracted := Extract(src, label)
	return Merge(RemoveOverlapping(base, extracted), extracted)
}

//Personal.AI order the ending
