package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	d := NewDocument(Metadata{MetaTitle: "Gut flora", MetaAbstract: "Probiotics help.", MetaYear: "2021"})
	d.Entities = append(d.Entities, Span{Start: 0, End: 3, Location: LocationTitle, Text: "Gut", Label: LabelAnatomicalLocation})
	return d
}

func TestMetadata_Accessors(t *testing.T) {
	m := Metadata{MetaTitle: "T", MetaAbstract: "A", MetaYear: 2020}
	assert.Equal(t, "T", m.Title())
	assert.Equal(t, "A", m.Abstract())
	assert.Equal(t, "T", m.Text(LocationTitle))
	assert.Equal(t, "A", m.Text(LocationAbstract))

	var nilMeta Metadata
	assert.Equal(t, "", nilMeta.Title())
	assert.Nil(t, nilMeta.Clone())
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	d := sampleDoc()
	c := d.Clone()

	c.Entities[0].Label = LabelFood
	c.Entities = append(c.Entities, Span{Label: LabelDrug})
	c.Metadata[MetaTitle] = "changed"
	c.Relations[0] = '{'

	assert.Equal(t, LabelAnatomicalLocation, d.Entities[0].Label)
	assert.Len(t, d.Entities, 1)
	assert.Equal(t, "Gut flora", d.Metadata.Title())
	assert.Equal(t, "[]", string(d.Relations))

	var nilDoc *Document
	assert.Nil(t, nilDoc.Clone())
}

func TestDocument_WithEntities(t *testing.T) {
	d := sampleDoc()
	w := d.WithEntities(nil)
	require.NotNil(t, w.Entities)
	assert.Empty(t, w.Entities)
	assert.Len(t, d.Entities, 1)
	assert.Equal(t, "Gut flora", w.Text(LocationTitle))
}

func TestDocumentSet_Helpers(t *testing.T) {
	set := DocumentSet{"b": sampleDoc(), "a": sampleDoc(), "c": NewDocument(nil)}
	set["a"].Entities = append(set["a"].Entities, Span{Label: LabelAnatomicalLocation}, Span{Label: LabelDrug})

	assert.Equal(t, []string{"a", "b", "c"}, set.IDs())
	assert.Equal(t, 4, set.EntityCount())
	assert.Equal(t, map[string]int{LabelAnatomicalLocation: 3, LabelDrug: 1}, set.LabelCounts())

	clone := set.Clone()
	clone["a"].Entities = nil
	assert.Len(t, set["a"].Entities, 3)
}

func TestStripMetadata(t *testing.T) {
	set := DocumentSet{"1": sampleDoc()}
	stripped := StripMetadata(set)

	require.Contains(t, stripped, "1")
	assert.Nil(t, stripped["1"].Metadata)
	assert.Nil(t, stripped["1"].Relations)
	assert.Equal(t, set["1"].Entities, stripped["1"].Entities)
	assert.NotNil(t, set["1"].Metadata)
}

func TestArticle_ConcatText(t *testing.T) {
	a := &Article{Metadata: Metadata{MetaTitle: "Title", MetaAbstract: "Body"}}
	assert.Equal(t, "Title Body", a.ConcatText())

	set := ArticleSet{"1": {Predictions: make([]RawEntity, 2)}, "2": {Predictions: make([]RawEntity, 1)}}
	assert.Equal(t, 3, set.PredictionCount())
	assert.Equal(t, LocationTitle, RawEntity{Tag: "t"}.Location())
}

func TestRun_Finish(t *testing.T) {
	r := NewRun("ensemble-1", "out.json")
	assert.Equal(t, RunStatusRunning, r.Status)

	r.Finish(DocumentSet{"1": sampleDoc()}, map[string]int{"extended": 2}, nil)
	assert.Equal(t, RunStatusSucceeded, r.Status)
	assert.Equal(t, 1, r.Documents)
	assert.Equal(t, 1, r.Entities)
	require.NotNil(t, r.FinishedAt)

	failed := NewRun("p", "o")
	failed.Finish(nil, nil, assert.AnError)
	assert.Equal(t, RunStatusFailed, failed.Status)
	assert.Equal(t, assert.AnError.Error(), failed.Error)
}

//Personal.AI order the ending
