package postprocess

import (
	"strings"
	"unicode"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

// DefaultLookahead bounds how far past a span the rule engine reads.
const DefaultLookahead = 20

// Rule absorbs a trailing qualifier word into a span.  A span qualifies when
// its label matches (any label when Label is empty) and the text right after
// it is whitespace followed by one of Words as a whole word.
type Rule struct {
	Name  string
	Words []string
	Label string
}

// TreatmentRule extends drug spans over "treatment(s)".
func TreatmentRule() Rule {
	return Rule{Name: "treatment", Words: []string{"treatment", "treatments"}, Label: annotation.LabelDrug}
}

// InterventionRule extends spans of any label over "intervention(s)".
func InterventionRule() Rule {
	return Rule{Name: "intervention", Words: []string{"intervention", "interventions"}}
}

// DefaultRules returns the built-in rules in application order.
func DefaultRules() []Rule {
	return []Rule{TreatmentRule(), InterventionRule()}
}

func (r Rule) applies(s annotation.Span) bool {
	return r.Label == "" || s.Label == r.Label
}

// match returns the end offset of the absorbed word, or -1.
func (r Rule) match(text annotation.FieldText, end, lookahead int) int {
	if end < 0 || end >= text.Len() {
		return -1
	}
	limit := end + lookahead
	if limit > text.Len() {
		limit = text.Len()
	}
	if !unicode.IsSpace(text[end]) {
		return -1
	}
	pos := end + 1
	for pos < limit && unicode.IsSpace(text[pos]) {
		pos++
	}
	window := string(text[pos:limit])
	for _, w := range r.Words {
		if !strings.HasPrefix(window, w) {
			continue
		}
		wordEnd := pos + len([]rune(w))
		if wordEnd == text.Len() || isWordBoundary(text[wordEnd]) {
			return wordEnd
		}
	}
	return -1
}

func isWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(".,;:!?", r)
}

// RuleEngine applies span extension rules to documents.
type RuleEngine struct {
	rules           []Rule
	lookahead       int
	recheckOverlaps bool
}

// RuleOption configures a RuleEngine.
type RuleOption func(*RuleEngine)

// WithLookahead sets the lookahead window in code points.
func WithLookahead(n int) RuleOption {
	return func(e *RuleEngine) {
		if n > 0 {
			e.lookahead = n
		}
	}
}

// WithOverlapRecheck reverts an extension when the extended span would
// overlap another span of the same document that the original did not.
// Without it, extensions may create overlaps.
func WithOverlapRecheck(enabled bool) RuleOption {
	return func(e *RuleEngine) { e.recheckOverlaps = enabled }
}

// NewRuleEngine returns an engine applying rules in order.  With no rules it
// uses DefaultRules.
func NewRuleEngine(rules []Rule, opts ...RuleOption) *RuleEngine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	e := &RuleEngine{rules: rules, lookahead: DefaultLookahead}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the configured rules.
func (e *RuleEngine) Rules() []Rule {
	return e.rules
}

// Apply runs every rule over a copy of doc's entities and returns the
// adjusted document with per-rule stats.  doc is not modified.
func (e *RuleEngine) Apply(doc *annotation.Document) (*annotation.Document, RuleReport) {
	report := make(RuleReport, len(e.rules))
	entities := make([]annotation.Span, len(doc.Entities))
	copy(entities, doc.Entities)

	texts := map[annotation.Location]annotation.FieldText{
		annotation.LocationTitle:    annotation.NewFieldText(doc.Metadata.Title()),
		annotation.LocationAbstract: annotation.NewFieldText(doc.Metadata.Abstract()),
	}

	for _, r := range e.rules {
		var st RuleStats
		for i := range entities {
			sp := entities[i]
			if !r.applies(sp) {
				continue
			}
			text, ok := texts[sp.Location]
			if !ok {
				continue
			}
			st.Total++

			newEnd := r.match(text, sp.End, e.lookahead)
			if newEnd < 0 {
				continue
			}
			extended := sp
			extended.End = newEnd
			extended.Text, _ = text.Slice(sp.Start, newEnd)

			if e.recheckOverlaps && createsOverlap(entities, i, sp, extended) {
				st.Reverted++
				continue
			}
			entities[i] = extended
			st.Extended++
		}
		report[r.Name] = report[r.Name].Add(st)
	}
	return doc.WithEntities(entities), report
}

// createsOverlap reports whether extended overlaps a span other than the one
// at index self that original did not already overlap.
func createsOverlap(entities []annotation.Span, self int, original, extended annotation.Span) bool {
	for j, other := range entities {
		if j == self {
			continue
		}
		if annotation.Overlaps(extended, other) && !annotation.Overlaps(original, other) {
			return true
		}
	}
	return false
}

// ApplySet runs Apply over every document sequentially.
func (e *RuleEngine) ApplySet(set annotation.DocumentSet) (annotation.DocumentSet, RuleReport) {
	out := make(annotation.DocumentSet, len(set))
	total := RuleReport{}
	for id, d := range set {
		if d == nil {
			continue
		}
		nd, rep := e.Apply(d)
		out[id] = nd
		total = total.Add(rep)
	}
	return out, total
}

//Personal.AI order the ending
