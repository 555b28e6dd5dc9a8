package postprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

func abstractDoc(abstract string, spans ...annotation.Span) *annotation.Document {
	doc := annotation.NewDocument(annotation.Metadata{
		annotation.MetaTitle:    "",
		annotation.MetaAbstract: abstract,
	})
	for _, s := range spans {
		s.Location = annotation.LocationAbstract
		if s.Text == "" {
			s.Text = string([]rune(abstract)[s.Start:s.End])
		}
		doc.Entities = append(doc.Entities, s)
	}
	return doc
}

func TestRuleEngine_ExtendsDrugOverTreatment(t *testing.T) {
	doc := abstractDoc("Drug treatment.", annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug})

	out, report := NewRuleEngine(nil).Apply(doc)

	require.Len(t, out.Entities, 1)
	got := out.Entities[0]
	assert.Equal(t, 0, got.Start)
	assert.Equal(t, 14, got.End)
	assert.Equal(t, "Drug treatment", got.Text)
	assert.Equal(t, RuleStats{Total: 1, Extended: 1}, report["treatment"])
	assert.Equal(t, 4, doc.Entities[0].End, "input must not be modified")
}

func TestRuleEngine_MatchCases(t *testing.T) {
	tests := []struct {
		name     string
		abstract string
		label    string
		wantEnd  int
	}{
		{"plural", "Drug treatments, then", annotation.LabelDrug, 15},
		{"end of text", "Drug treatment", annotation.LabelDrug, 14},
		{"extra whitespace", "Drug  treatment;", annotation.LabelDrug, 15},
		{"no separating space", "Drugtreatment", annotation.LabelDrug, 4},
		{"longer word", "Drug treatmentX", annotation.LabelDrug, 4},
		{"other label", "Gene treatment", annotation.LabelGene, 4},
		{"intervention any label", "Diet intervention was", annotation.LabelFood, 17},
		{"interventions", "Diet interventions!", annotation.LabelFood, 18},
		{"span at end", "Drug", annotation.LabelDrug, 4},
		{"beyond lookahead", "Drug" + strings.Repeat(" ", 20) + "treatment", annotation.LabelDrug, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := abstractDoc(tt.abstract, annotation.Span{Start: 0, End: 4, Label: tt.label})
			out, _ := NewRuleEngine(nil).Apply(doc)
			require.Len(t, out.Entities, 1)
			e := out.Entities[0]
			assert.Equal(t, tt.wantEnd, e.End)
			assert.True(t, annotation.NewFieldText(tt.abstract).Aligned(e))
		})
	}
}

func TestRuleEngine_TotalCountsApplicableSpans(t *testing.T) {
	doc := abstractDoc("Drug treatment and gene X",
		annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug},
		annotation.Span{Start: 19, End: 23, Label: annotation.LabelGene},
	)

	_, report := NewRuleEngine(nil).Apply(doc)

	assert.Equal(t, RuleStats{Total: 1, Extended: 1}, report["treatment"])
	assert.Equal(t, RuleStats{Total: 2}, report["intervention"])
	assert.Equal(t, RuleStats{Total: 3, Extended: 1}, report.Totals())
}

func TestRuleEngine_OverlapRecheck(t *testing.T) {
	build := func() *annotation.Document {
		return abstractDoc("Drug treatment works",
			annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug},
			annotation.Span{Start: 5, End: 14, Label: annotation.LabelBiomedicalTechnique},
		)
	}

	out, report := NewRuleEngine(nil).Apply(build())
	assert.Equal(t, 14, out.Entities[0].End)
	assert.True(t, annotation.Overlaps(out.Entities[0], out.Entities[1]))
	assert.Equal(t, 0, report["treatment"].Reverted)

	out, report = NewRuleEngine(nil, WithOverlapRecheck(true)).Apply(build())
	assert.Equal(t, 4, out.Entities[0].End)
	assert.Equal(t, RuleStats{Total: 1, Reverted: 1}, report["treatment"])
}

func TestRuleEngine_TitleSpans(t *testing.T) {
	doc := annotation.NewDocument(annotation.Metadata{
		annotation.MetaTitle:    "Probiotic intervention in IBS",
		annotation.MetaAbstract: "Probiotic",
	})
	doc.Entities = []annotation.Span{
		{Start: 0, End: 9, Location: annotation.LocationTitle, Text: "Probiotic", Label: annotation.LabelDietarySupplement},
		{Start: 0, End: 9, Location: annotation.LocationAbstract, Text: "Probiotic", Label: annotation.LabelDietarySupplement},
	}

	out, _ := NewRuleEngine(nil).Apply(doc)

	assert.Equal(t, "Probiotic intervention", out.Entities[0].Text)
	assert.Equal(t, "Probiotic", out.Entities[1].Text)
}

func TestRuleEngine_CustomRuleAndLookahead(t *testing.T) {
	rule := Rule{Name: "therapy", Words: []string{"therapy"}, Label: annotation.LabelDrug}
	doc := abstractDoc("Drug    therapy", annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug})

	out, _ := NewRuleEngine([]Rule{rule}, WithLookahead(8)).Apply(doc)
	assert.Equal(t, 4, out.Entities[0].End)

	out, report := NewRuleEngine([]Rule{rule}).Apply(doc)
	assert.Equal(t, "Drug    therapy", out.Entities[0].Text)
	assert.Equal(t, 1, report["therapy"].Extended)
}

func TestRuleEngine_ApplySet(t *testing.T) {
	set := annotation.DocumentSet{
		"1": abstractDoc("Drug treatment", annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug}),
		"2": abstractDoc("Drug treatments", annotation.Span{Start: 0, End: 4, Label: annotation.LabelDrug}),
	}

	out, report := NewRuleEngine(nil).ApplySet(set)

	assert.Len(t, out, 2)
	assert.Equal(t, 2, report["treatment"].Extended)
	assert.Equal(t, 4, set["1"].Entities[0].End)
}

//Personal.AI order the ending
