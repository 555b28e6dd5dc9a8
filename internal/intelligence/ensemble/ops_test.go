package ensemble

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

func span(start, end int, label string) annotation.Span {
	return annotation.Span{Start: start, End: end, Location: annotation.LocationAbstract, Label: label}
}

func doc(title string, spans ...annotation.Span) *annotation.Document {
	d := annotation.NewDocument(annotation.Metadata{annotation.MetaTitle: title, annotation.MetaAbstract: ""})
	d.Entities = append(d.Entities, spans...)
	return d
}

func labels(d *annotation.Document) []string {
	out := make([]string, 0, len(d.Entities))
	for _, e := range d.Entities {
		out = append(out, e.Label)
	}
	return out
}

func TestOverwriteClass_DropsOverlappingOtherLabel(t *testing.T) {
	x := span(10, 15, annotation.LabelGene)
	y := span(12, 18, annotation.LabelHuman)
	base := annotation.DocumentSet{"1": doc("b", x)}
	src := annotation.DocumentSet{"1": doc("s", y)}

	out := OverwriteClass(base, src, annotation.LabelHuman)

	require.Contains(t, out, "1")
	assert.Equal(t, []annotation.Span{y}, out["1"].Entities)
	assert.Equal(t, "b", out["1"].Metadata.Title())
	assert.Equal(t, []annotation.Span{x}, base["1"].Entities, "base must not be modified")
}

func TestExtract(t *testing.T) {
	set := annotation.DocumentSet{
		"1": doc("a", span(0, 1, "gene"), span(2, 3, "food")),
		"2": doc("b", span(0, 1, "food")),
		"3": nil,
	}

	out := Extract(set, "gene")

	require.Len(t, out, 1)
	assert.Equal(t, []string{"gene"}, labels(out["1"]))
	assert.Len(t, set["1"].Entities, 2)
}

func TestRemove_KeepsDocumentsAndIsIdempotent(t *testing.T) {
	set := annotation.DocumentSet{
		"1": doc("a", span(0, 1, "gene"), span(2, 3, "food")),
		"2": doc("b", span(0, 1, "gene")),
	}

	once := Remove(set, "gene")
	twice := Remove(once, "gene")

	require.Len(t, once, 2)
	assert.Empty(t, once["2"].Entities)
	assert.NotNil(t, once["2"].Entities)
	assert.Equal(t, once, twice)
	assert.Len(t, set["2"].Entities, 1)
}

func TestRemoveOverlapping(t *testing.T) {
	target := annotation.DocumentSet{
		"1": doc("a", span(0, 5, "gene"), span(5, 8, "food"),
			annotation.Span{Start: 0, End: 5, Location: annotation.LocationTitle, Label: "gene"}),
		"2": doc("b", span(0, 5, "gene")),
	}
	interfering := annotation.DocumentSet{"1": doc("x", span(3, 5, "human"))}

	out := RemoveOverlapping(target, interfering)

	require.Len(t, out["1"].Entities, 2)
	assert.Equal(t, "food", out["1"].Entities[0].Label)
	assert.Equal(t, annotation.LocationTitle, out["1"].Entities[1].Location)
	assert.Same(t, target["2"], out["2"])
}

func TestMerge_BasePrecedenceAndNewDocuments(t *testing.T) {
	base := annotation.DocumentSet{"1": doc("base", span(0, 1, "gene"))}
	add := annotation.DocumentSet{
		"1": doc("addition", span(0, 1, "gene")),
		"2": {Metadata: annotation.Metadata{annotation.MetaTitle: "new"}, Entities: []annotation.Span{span(1, 2, "food")}},
	}

	out := Merge(base, add)

	require.Len(t, out, 2)
	assert.Equal(t, "base", out["1"].Metadata.Title())
	assert.Len(t, out["1"].Entities, 2, "duplicates are kept")
	assert.Equal(t, "new", out["2"].Metadata.Title())
	assert.Equal(t, json.RawMessage("[]"), out["2"].Relations)
	assert.Len(t, base["1"].Entities, 1)

	rev := Merge(add, base)
	assert.Equal(t, "addition", rev["1"].Metadata.Title())
}

func TestMerge_Associative(t *testing.T) {
	a := annotation.DocumentSet{"1": doc("a", span(0, 1, "gene"))}
	b := annotation.DocumentSet{"1": doc("b", span(1, 2, "food")), "2": doc("b2", span(0, 2, "drug"))}
	c := annotation.DocumentSet{"2": doc("c", span(3, 4, "human")), "3": doc("c3", span(0, 1, "animal"))}

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	require.Equal(t, left.IDs(), right.IDs())
	for _, id := range left.IDs() {
		assert.Equal(t, left[id].Entities, right[id].Entities, id)
		assert.Equal(t, left[id].Metadata, right[id].Metadata, id)
	}
}

func TestOverlayClass_KeepsNonCollidingSameLabel(t *testing.T) {
	base := annotation.DocumentSet{"1": doc("b", span(0, 3, "DDF"), span(10, 14, "DDF"), span(20, 25, "gene"))}
	src := annotation.DocumentSet{
		"1": doc("s", span(11, 13, "DDF"), span(21, 22, "food")),
		"2": doc("s2", span(0, 3, "DDF")),
	}

	overlay := OverlayClass(base, src, "DDF")
	overwrite := OverwriteClass(base, src, "DDF")

	assert.Equal(t, []annotation.Span{span(0, 3, "DDF"), span(20, 25, "gene"), span(11, 13, "DDF")}, overlay["1"].Entities)
	assert.Equal(t, []annotation.Span{span(20, 25, "gene"), span(11, 13, "DDF")}, overwrite["1"].Entities)
	assert.Contains(t, overlay, "2")
}

func TestReplaceClass_IgnoresOtherLabelOverlaps(t *testing.T) {
	base := annotation.DocumentSet{"1": doc("b", span(0, 5, "microbiome"), span(2, 6, "bacteria"))}
	src := annotation.DocumentSet{"1": doc("s", span(1, 6, "microbiome"))}

	out := ReplaceClass(base, src, "microbiome")

	assert.Equal(t, []annotation.Span{span(2, 6, "bacteria"), span(1, 6, "microbiome")}, out["1"].Entities)
}

//Personal.AI order the ending
