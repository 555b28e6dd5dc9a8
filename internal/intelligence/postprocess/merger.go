package postprocess

import (
	"fmt"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

// Adjacency decides when two consecutive spans abut.
type Adjacency string

const (
	// AdjacencyLenient merges spans that touch (end == start) or are split
	// by one character (end+1 == start), such as the hyphen in
	// "Salt-loading" or the space in "vitamin D3".
	AdjacencyLenient Adjacency = "lenient"

	// AdjacencyTouching only merges spans whose ranges touch.
	AdjacencyTouching Adjacency = "touching"
)

// ParseAdjacency validates an adjacency name.  The empty string selects
// AdjacencyLenient.
func ParseAdjacency(s string) (Adjacency, error) {
	switch Adjacency(s) {
	case "", AdjacencyLenient:
		return AdjacencyLenient, nil
	case AdjacencyTouching:
		return AdjacencyTouching, nil
	default:
		return "", fmt.Errorf("postprocess: unknown adjacency %q", s)
	}
}

// Adjacent reports whether a span ending at end abuts one starting at start.
func (a Adjacency) Adjacent(end, start int) bool {
	if end == start {
		return true
	}
	return a == AdjacencyLenient && end+1 == start
}

// MergeConsecutive fuses runs of abutting predictions that share a label and
// a field.  text is the concatenated text the offsets index into, with the
// exclusive ends the inference service emits.  Labels must already be
// canonical.  The input must be in document order; it is not modified.
//
// A merged span ends where the last constituent ends, its text is rebuilt
// from the constituents and the source characters between them, and its
// score is the minimum of the constituent scores.
func MergeConsecutive(preds []annotation.RawEntity, text annotation.FieldText, adj Adjacency) ([]annotation.RawEntity, MergeStats) {
	stats := MergeStats{Input: len(preds)}
	if len(preds) == 0 {
		return []annotation.RawEntity{}, stats
	}

	out := make([]annotation.RawEntity, 0, len(preds))
	cur := preds[0]
	for _, next := range preds[1:] {
		if cur.Label == next.Label && cur.Tag == next.Tag && adj.Adjacent(cur.End, next.Start) {
			join, _ := text.Slice(cur.End, next.Start)
			cur.End = next.End
			cur.Text += join + next.Text
			if next.Score < cur.Score {
				cur.Score = next.Score
			}
			stats.Merged++
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)

	stats.Output = len(out)
	return out, stats
}

//Personal.AI order the ending
