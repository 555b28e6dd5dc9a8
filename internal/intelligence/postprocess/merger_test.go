package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

func raw(start, end int, text, label string, score float64) annotation.RawEntity {
	return annotation.RawEntity{Start: start, End: end, Tag: "a", Text: text, Label: label, Score: score}
}

func TestMergeConsecutive_TouchingSpans(t *testing.T) {
	text := annotation.NewFieldText("The sodium-chloride solution")
	preds := []annotation.RawEntity{
		raw(4, 10, "sodium", "chemical", 0.9),
		raw(10, 19, "-chloride", "chemical", 0.6),
	}

	out, stats := MergeConsecutive(preds, text, AdjacencyTouching)

	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Start)
	assert.Equal(t, 19, out[0].End)
	assert.Equal(t, "sodium-chloride", out[0].Text)
	assert.Equal(t, 0.6, out[0].Score)
	assert.Equal(t, MergeStats{Input: 2, Output: 1, Merged: 1}, stats)
}

func TestMergeConsecutive_AbuttingChemicalSpans(t *testing.T) {
	text := annotation.NewFieldText("xxxxxabcdefghijkl")
	preds := []annotation.RawEntity{
		raw(5, 10, "abcde", "chemical", 0.8),
		raw(10, 14, "fghi", "chemical", 0.7),
	}

	out, _ := MergeConsecutive(preds, text, AdjacencyTouching)

	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].Start)
	assert.Equal(t, 14, out[0].End)
	assert.Equal(t, 0.7, out[0].Score)
	assert.Equal(t, "abcdefghi", out[0].Text)
}

func TestMergeConsecutive_LenientIncludesGapCharacter(t *testing.T) {
	text := annotation.NewFieldText("vitamin D3 supplement")
	preds := []annotation.RawEntity{
		raw(0, 7, "vitamin", "dietary supplement", 0.8),
		raw(8, 10, "D3", "dietary supplement", 0.9),
	}

	touching, _ := MergeConsecutive(preds, text, AdjacencyTouching)
	assert.Len(t, touching, 2)

	lenient, _ := MergeConsecutive(preds, text, AdjacencyLenient)
	require.Len(t, lenient, 1)
	assert.Equal(t, "vitamin D3", lenient[0].Text)
	assert.Equal(t, 0.8, lenient[0].Score)
}

func TestMergeConsecutive_HyphenGapKeepsJoinCharacter(t *testing.T) {
	text := annotation.NewFieldText("T Salt-loading x")
	preds := []annotation.RawEntity{
		raw(2, 6, "Salt", "chemical", 0.8),
		raw(7, 14, "loading", "chemical", 0.7),
	}

	out, stats := MergeConsecutive(preds, text, AdjacencyLenient)

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Start)
	assert.Equal(t, 14, out[0].End)
	assert.Equal(t, "Salt-loading", out[0].Text)
	assert.Equal(t, 0.7, out[0].Score)
	assert.Equal(t, 1, stats.Merged)
	got, _ := text.Slice(out[0].Start, out[0].End)
	assert.Equal(t, got, out[0].Text)

	touching, _ := MergeConsecutive(preds, text, AdjacencyTouching)
	assert.Len(t, touching, 2)
}

func TestMergeConsecutive_DifferentLabelOrFieldNotMerged(t *testing.T) {
	text := annotation.NewFieldText("abcdefghij")
	title := annotation.RawEntity{Start: 0, End: 3, Tag: "t", Text: "abc", Label: "gene", Score: 1}
	abstract := annotation.RawEntity{Start: 3, End: 5, Tag: "a", Text: "de", Label: "gene", Score: 1}
	other := raw(5, 7, "fg", "food", 1)

	out, stats := MergeConsecutive([]annotation.RawEntity{title, abstract, other}, text, AdjacencyLenient)
	assert.Len(t, out, 3)
	assert.Equal(t, 0, stats.Merged)
}

func TestMergeConsecutive_ChainAndInputUntouched(t *testing.T) {
	text := annotation.NewFieldText("aaabbbccc")
	preds := []annotation.RawEntity{
		raw(0, 3, "aaa", "gene", 0.9),
		raw(3, 6, "bbb", "gene", 0.5),
		raw(6, 9, "ccc", "gene", 0.7),
	}
	orig := append([]annotation.RawEntity(nil), preds...)

	out, stats := MergeConsecutive(preds, text, AdjacencyTouching)

	require.Len(t, out, 1)
	assert.Equal(t, "aaabbbccc", out[0].Text)
	assert.Equal(t, 0.5, out[0].Score)
	assert.Equal(t, 2, stats.Merged)
	assert.Equal(t, orig, preds)
}

func TestMergeConsecutive_OutputIsMaximal(t *testing.T) {
	text := annotation.NewFieldText("0123456789012345678901234567890")
	preds := []annotation.RawEntity{
		raw(0, 2, "01", "gene", 1),
		raw(2, 4, "23", "gene", 1),
		raw(5, 7, "56", "gene", 1),
		raw(7, 8, "7", "food", 1),
		raw(8, 10, "89", "food", 1),
		raw(12, 14, "23", "gene", 1),
	}
	for _, adj := range []Adjacency{AdjacencyTouching, AdjacencyLenient} {
		out, _ := MergeConsecutive(preds, text, adj)
		for i := 1; i < len(out); i++ {
			prev, next := out[i-1], out[i]
			if prev.Label == next.Label && prev.Tag == next.Tag {
				assert.False(t, adj.Adjacent(prev.End, next.Start), "%s: %v then %v", adj, prev, next)
			}
		}
	}
}

func TestMergeConsecutive_Empty(t *testing.T) {
	out, stats := MergeConsecutive(nil, nil, AdjacencyTouching)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, MergeStats{}, stats)
}

func TestParseAdjacency(t *testing.T) {
	a, err := ParseAdjacency("")
	require.NoError(t, err)
	assert.Equal(t, AdjacencyLenient, a)

	a, err = ParseAdjacency("touching")
	require.NoError(t, err)
	assert.Equal(t, AdjacencyTouching, a)

	_, err = ParseAdjacency("fuzzy")
	assert.Error(t, err)
}

//Personal.AI order the ending
