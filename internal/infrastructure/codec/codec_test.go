package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

const rawFixture = `{
  "111": {
    "title": "Gut flora",
    "abstract": "Salt-loading worsens ddf.",
    "author": "Doe J",
    "year": 2021,
    "pred_entities": [
      {"start_idx": 0, "end_idx": 9, "tag": "t", "text_span": "Gut flora", "entity_label": "microbiome", "score": 0.81}
    ]
  },
  "222": {"title": "No predictions", "abstract": "x"},
  "333": {"title": "bad", "pred_entities": [{"start_idx": "zero"}]},
  "444": [1, 2, 3],
  "555": {"title": 7, "abstract": "x"}
}`

func TestDecodeRaw(t *testing.T) {
	set, report, err := New(Options{}).DecodeRaw([]byte(rawFixture))
	require.NoError(t, err)

	assert.Len(t, set, 2)
	assert.Equal(t, 2, report.Decoded)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, []string{"333", "444", "555"}, report.SkippedIDs())

	a := set["111"]
	require.NotNil(t, a)
	assert.Equal(t, "Gut flora", a.Metadata.Title())
	assert.Equal(t, json.Number("2021"), a.Metadata[annotation.MetaYear])
	_, hasPreds := a.Metadata["pred_entities"]
	assert.False(t, hasPreds)
	require.Len(t, a.Predictions, 1)
	assert.Equal(t, annotation.RawEntity{Start: 0, End: 9, Tag: "t", Text: "Gut flora", Label: "microbiome", Score: 0.81}, a.Predictions[0])

	assert.Empty(t, set["222"].Predictions)
}

func TestDecodeRaw_NotAnObject(t *testing.T) {
	_, _, err := New(Options{}).DecodeRaw([]byte(`[{"title": "x"}]`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedInput))
}

func TestDecodeDocuments(t *testing.T) {
	data := `{
	  "1": {
	    "metadata": {"title": "T", "abstract": "ddf flare", "annotator": "distant"},
	    "entities": [{"start_idx": 0, "end_idx": 3, "location": "abstract", "text_span": "ddf", "label": "Ddf", "score": 0.4}],
	    "relations": [{"subject": "a"}]
	  },
	  "2": {"entities": [{"start_idx": 0, "end_idx": 3, "location": "body", "text_span": "ddf", "label": "DDF"}]},
	  "3": {"entities": [{"start_idx": 5, "end_idx": 3, "location": "title", "text_span": "", "label": "gene"}]},
	  "4": {"metadata": {"title": "empty"}}
	}`

	set, report, err := New(Options{}).DecodeDocuments([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "3"}, report.SkippedIDs())
	require.Len(t, set, 2)
	assert.Equal(t, annotation.LabelDDF, set["1"].Entities[0].Label)
	assert.JSONEq(t, `[{"subject": "a"}]`, string(set["1"].Relations))
	assert.NotNil(t, set["4"].Entities)
}

func TestEncodeDocuments_ScoresAndOrder(t *testing.T) {
	d := annotation.NewDocument(annotation.Metadata{annotation.MetaTitle: "T", annotation.MetaAbstract: "A"})
	d.Entities = []annotation.Span{{Start: 0, End: 1, Location: annotation.LocationTitle, Text: "T", Label: "gene", Score: 0.9}}
	set := annotation.DocumentSet{"b": d, "a": d}

	plain, err := New(Options{}).EncodeDocuments(set)
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "score")
	assert.Less(t, bytes.Index(plain, []byte(`"a"`)), bytes.Index(plain, []byte(`"b"`)))
	assert.Equal(t, 0.9, set["a"].Entities[0].Score, "input must keep its scores")

	scored, err := New(Options{IncludeScores: true, Indent: "  "}).EncodeDocuments(set)
	require.NoError(t, err)
	assert.Contains(t, string(scored), `"score": 0.9`)
	assert.Contains(t, string(scored), "\n  ")
}

func TestEncodeDocuments_ZeroScoreKept(t *testing.T) {
	d := annotation.NewDocument(annotation.Metadata{annotation.MetaTitle: "T"})
	d.Entities = []annotation.Span{{Start: 0, End: 1, Location: annotation.LocationTitle, Text: "T", Label: "gene", Score: 0}}
	set := annotation.DocumentSet{"1": d}

	scored, err := New(Options{IncludeScores: true}).EncodeDocuments(set)
	require.NoError(t, err)
	assert.Contains(t, string(scored), `"score":0`)

	plain, err := New(Options{}).EncodeDocuments(set)
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "score")
}

func TestEncodeDecode_StrippedDocuments(t *testing.T) {
	d := annotation.NewDocument(annotation.Metadata{annotation.MetaTitle: "T"})
	d.Entities = []annotation.Span{{Start: 0, End: 1, Location: annotation.LocationTitle, Text: "T", Label: "gene"}}
	stripped := annotation.StripMetadata(annotation.DocumentSet{"1": d})

	c := New(Options{})
	data, err := c.EncodeDocuments(stripped)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"entities":[{"start_idx":0,"end_idx":1,"location":"title","text_span":"T","label":"gene"}]}}`, string(data))

	back, report, err := c.DecodeDocuments(data)
	require.NoError(t, err)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, stripped["1"].Entities, back["1"].Entities)
}

//Personal.AI order the ending
