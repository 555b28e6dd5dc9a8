package postprocess

import (
	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

// DefaultEndShift is added to every upstream end offset to produce the
// exclusive end used by canonical spans.  The inference service already
// emits exclusive ends (text_span == text[start_idx:end_idx]), so no shift is
// needed.  Sets written one past the exclusive end use -1.
const DefaultEndShift = 0

// Normalizer converts raw predictions from the concatenated title+abstract
// offset space into canonical per-field spans.  It is the only place where
// offsets are shifted, labels are canonicalized and the inference field names
// (tag, entity_label) are mapped to the canonical ones.
type Normalizer struct {
	endShift int
}

// NewNormalizer returns a Normalizer applying endShift to every end offset.
func NewNormalizer(endShift int) *Normalizer {
	return &Normalizer{endShift: endShift}
}

// Normalize converts one article.  Abstract spans move left by
// len(title)+1 on both ends.  Spans that fall outside their field after the
// shift are dropped and counted as OutOfRange; spans whose text does not match
// the field slice are kept and counted as Misaligned.
func (n *Normalizer) Normalize(a *annotation.Article) (*annotation.Document, NormalizeStats) {
	stats := NormalizeStats{Documents: 1}

	meta := groundTruthMetadata(a.Metadata)
	doc := annotation.NewDocument(meta)

	title := annotation.NewFieldText(meta.Title())
	abstract := annotation.NewFieldText(meta.Abstract())
	abstractOffset := title.Len() + 1

	for _, p := range a.Predictions {
		loc := p.Location()
		start, end := p.Start, p.End+n.endShift
		field := title
		if loc == annotation.LocationAbstract {
			start -= abstractOffset
			end -= abstractOffset
			field = abstract
		}
		if !field.InRange(start, end) {
			stats.OutOfRange++
			continue
		}

		sp := annotation.Span{
			Start:    start,
			End:      end,
			Location: loc,
			Text:     p.Text,
			Label:    annotation.CanonicalLabel(p.Label),
			Score:    p.Score,
		}
		if !field.Aligned(sp) {
			stats.Misaligned++
		}
		doc.Entities = append(doc.Entities, sp)
		stats.Entities++
	}
	return doc, stats
}

// groundTruthMetadata copies the article fields and marks the annotations as
// model-produced.
func groundTruthMetadata(src annotation.Metadata) annotation.Metadata {
	meta := src.Clone()
	if meta == nil {
		meta = annotation.Metadata{}
	}
	for _, k := range []string{annotation.MetaTitle, annotation.MetaAbstract} {
		if _, ok := meta[k]; !ok {
			meta[k] = ""
		}
	}
	meta[annotation.MetaAnnotator] = annotation.AnnotatorDistant
	return meta
}

type rawKey struct {
	start, end  int
	text, label string
	score       float64
}

// Dedup removes repeated predictions, keeping the first occurrence.  Two
// predictions are the same when offsets, text, label and score all match.
func Dedup(preds []annotation.RawEntity) ([]annotation.RawEntity, int) {
	seen := make(map[rawKey]struct{}, len(preds))
	out := make([]annotation.RawEntity, 0, len(preds))
	for _, p := range preds {
		k := rawKey{p.Start, p.End, p.Text, p.Label, p.Score}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out, len(preds) - len(out)
}

//Personal.AI order the ending
