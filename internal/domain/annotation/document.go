package annotation

import (
	"encoding/json"
	"sort"
)

// Metadata keys with fixed meaning.  Every other key is bibliographic data
// carried through unchanged.
const (
	MetaTitle     = "title"
	MetaAbstract  = "abstract"
	MetaAuthor    = "author"
	MetaJournal   = "journal"
	MetaYear      = "year"
	MetaAnnotator = "annotator"
)

// AnnotatorDistant marks entities produced by model inference rather than
// human curation.
const AnnotatorDistant = "distant"

// Metadata holds a document's title, abstract and bibliographic fields.
type Metadata map[string]interface{}

func (m Metadata) str(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Title returns the document title or "".
func (m Metadata) Title() string { return m.str(MetaTitle) }

// Abstract returns the document abstract or "".
func (m Metadata) Abstract() string { return m.str(MetaAbstract) }

// Text returns the field text for loc.
func (m Metadata) Text(loc Location) string {
	if loc == LocationTitle {
		return m.Title()
	}
	return m.Abstract()
}

// Clone returns a shallow copy of m.  Values are treated as immutable.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// emptyRelations is the serialized form of a document without relations.
var emptyRelations = json.RawMessage("[]")

// EmptyRelations returns a fresh "[]" relations payload.
func EmptyRelations() json.RawMessage {
	out := make(json.RawMessage, len(emptyRelations))
	copy(out, emptyRelations)
	return out
}

// Document is one annotated article.  Relations are opaque and never
// interpreted; they are kept as raw JSON.  A nil Metadata or Relations is
// omitted on output, which is how stripped documents are written.
type Document struct {
	Metadata  Metadata        `json:"metadata,omitempty"`
	Entities  []Span          `json:"entities"`
	Relations json.RawMessage `json:"relations,omitempty"`
}

// NewDocument returns a document with the given metadata, no entities and
// empty relations.
func NewDocument(meta Metadata) *Document {
	return &Document{
		Metadata:  meta,
		Entities:  []Span{},
		Relations: EmptyRelations(),
	}
}

// Clone returns a copy of d whose entity slice and metadata map may be
// modified without affecting d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Metadata: d.Metadata.Clone(),
		Entities: make([]Span, len(d.Entities)),
	}
	copy(out.Entities, d.Entities)
	if d.Relations != nil {
		out.Relations = make(json.RawMessage, len(d.Relations))
		copy(out.Relations, d.Relations)
	}
	return out
}

// WithEntities returns a copy of d that shares metadata and relations but
// carries the supplied entity slice.
func (d *Document) WithEntities(entities []Span) *Document {
	if entities == nil {
		entities = []Span{}
	}
	return &Document{
		Metadata:  d.Metadata,
		Entities:  entities,
		Relations: d.Relations,
	}
}

// Text returns the field text for loc.
func (d *Document) Text(loc Location) string {
	return d.Metadata.Text(loc)
}

// DocumentSet maps document ids to documents.  It is the unit of input and
// output for every reconciliation operation and represents one model's full
// prediction set.
type DocumentSet map[string]*Document

// IDs returns the document ids in ascending order.
func (s DocumentSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies every document.
func (s DocumentSet) Clone() DocumentSet {
	out := make(DocumentSet, len(s))
	for id, d := range s {
		out[id] = d.Clone()
	}
	return out
}

// EntityCount returns the total number of entities across the set.
func (s DocumentSet) EntityCount() int {
	n := 0
	for _, d := range s {
		if d != nil {
			n += len(d.Entities)
		}
	}
	return n
}

// LabelCounts returns the number of entities per label.
func (s DocumentSet) LabelCounts() map[string]int {
	out := make(map[string]int)
	for _, d := range s {
		if d == nil {
			continue
		}
		for _, e := range d.Entities {
			out[e.Label]++
		}
	}
	return out
}

// StripMetadata returns a copy of s in which every document keeps only its
// entities.
func StripMetadata(s DocumentSet) DocumentSet {
	out := make(DocumentSet, len(s))
	for id, d := range s {
		if d == nil {
			continue
		}
		entities := make([]Span, len(d.Entities))
		copy(entities, d.Entities)
		out[id] = &Document{Entities: entities}
	}
	return out
}

//Personal.AI order the ending
