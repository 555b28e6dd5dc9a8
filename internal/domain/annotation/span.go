// Package annotation defines the entity annotation model shared by every
// reconciliation stage: spans, documents, document sets and the raw
// prediction form emitted by the inference service.
//
// Offsets are counted in Unicode code points and end offsets are exclusive:
// a span's Text always equals the field text sliced as [Start, End).
package annotation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Location identifies the document field a span belongs to.  Title and
// abstract offsets are independent coordinate spaces.
type Location string

const (
	LocationTitle    Location = "title"
	LocationAbstract Location = "abstract"
)

// Valid reports whether l is a known location.
func (l Location) Valid() bool {
	return l == LocationTitle || l == LocationAbstract
}

// LocationFromTag maps the inference service's single-letter tag to a
// Location.  "t" is the title; every other tag is treated as the abstract.
func LocationFromTag(tag string) Location {
	if tag == "t" {
		return LocationTitle
	}
	return LocationAbstract
}

// Span is a labelled character range within one document field.
type Span struct {
	Start    int      `json:"start_idx"`
	End      int      `json:"end_idx"`
	Location Location `json:"location"`
	Text     string   `json:"text_span"`
	Label    string   `json:"label"`
	Score    float64  `json:"score"`
}

// Len returns the number of code points covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%s[%d,%d) %q %s", s.Location, s.Start, s.End, s.Text, s.Label)
}

// Overlaps reports whether a and b conflict: they share a location and their
// half-open ranges intersect.  Spans in different locations never overlap.
func Overlaps(a, b Span) bool {
	if a.Location != b.Location {
		return false
	}
	return !(a.End <= b.Start || b.End <= a.Start)
}

// OverlapsAny reports whether s overlaps at least one span in others.
func OverlapsAny(s Span, others []Span) bool {
	for _, o := range others {
		if Overlaps(s, o) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Labels
// ─────────────────────────────────────────────────────────────────────────────

// Canonical entity classes.
const (
	LabelAnatomicalLocation   = "anatomical location"
	LabelAnimal               = "animal"
	LabelBiomedicalTechnique  = "biomedical technique"
	LabelBacteria             = "bacteria"
	LabelChemical             = "chemical"
	LabelDietarySupplement    = "dietary supplement"
	LabelDDF                  = "DDF"
	LabelDrug                 = "drug"
	LabelFood                 = "food"
	LabelGene                 = "gene"
	LabelHuman                = "human"
	LabelMicrobiome           = "microbiome"
	LabelStatisticalTechnique = "statistical technique"
)

// KnownLabels lists the canonical classes in a stable order.
var KnownLabels = []string{
	LabelAnatomicalLocation,
	LabelAnimal,
	LabelBiomedicalTechnique,
	LabelBacteria,
	LabelChemical,
	LabelDietarySupplement,
	LabelDDF,
	LabelDrug,
	LabelFood,
	LabelGene,
	LabelHuman,
	LabelMicrobiome,
	LabelStatisticalTechnique,
}

var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(KnownLabels))
	for _, l := range KnownLabels {
		m[LabelKey(l)] = l
	}
	return m
}()

// LabelKey returns the case-folded, whitespace-trimmed lookup key for a
// label.  Two labels denote the same class iff their keys are equal.
func LabelKey(label string) string {
	return cases.Fold().String(strings.TrimSpace(label))
}

// CanonicalLabel maps any case variant of a known class to its canonical
// spelling ("ddf" and "Ddf" become "DDF").  Unknown labels are returned in
// their folded form.  It is applied once when spans enter the system.
func CanonicalLabel(label string) string {
	key := LabelKey(label)
	if c, ok := canonicalByKey[key]; ok {
		return c
	}
	return key
}

//Personal.AI order the ending
