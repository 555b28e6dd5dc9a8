package postprocess

import (
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Options configures a Processor.
type Options struct {
	Adjacency Adjacency
	EndShift  int
}

// DefaultOptions returns lenient adjacency and the default end shift.
func DefaultOptions() Options {
	return Options{Adjacency: AdjacencyLenient, EndShift: DefaultEndShift}
}

// Processor turns one model's raw predictions into canonical documents:
// dedup, threshold filter, consecutive merge, index normalization.
type Processor struct {
	thresholds *Thresholds
	adjacency  Adjacency
	normalizer *Normalizer
}

// NewProcessor builds a Processor.  thresholds is required.
func NewProcessor(thresholds *Thresholds, opts Options) (*Processor, error) {
	if thresholds == nil || thresholds.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidThreshold, "thresholds are required")
	}
	adj, err := ParseAdjacency(string(opts.Adjacency))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid adjacency")
	}
	return &Processor{
		thresholds: thresholds,
		adjacency:  adj,
		normalizer: NewNormalizer(opts.EndShift),
	}, nil
}

// Process converts one article.  It does not modify a.
func (p *Processor) Process(a *annotation.Article) (*annotation.Document, Stats) {
	var stats Stats

	preds, dups := Dedup(canonicalLabels(a.Predictions))
	preds, stats.Filter = p.thresholds.FilterRaw(preds)
	preds, stats.Merge = MergeConsecutive(preds, annotation.NewFieldText(a.ConcatText()), p.adjacency)

	doc, norm := p.normalizer.Normalize(&annotation.Article{Metadata: a.Metadata, Predictions: preds})
	norm.Duplicates = dups
	stats.Normalize = norm
	return doc, stats
}

// canonicalLabels returns a copy of preds with every label canonicalized, so
// dedup, thresholds and the merger compare "ddf" and "DDF" as one class.
func canonicalLabels(preds []annotation.RawEntity) []annotation.RawEntity {
	out := make([]annotation.RawEntity, len(preds))
	for i, p := range preds {
		p.Label = annotation.CanonicalLabel(p.Label)
		out[i] = p
	}
	return out
}

// ProcessSet converts every article sequentially.  Callers that want
// parallelism fan out over Process themselves.
func (p *Processor) ProcessSet(set annotation.ArticleSet) (annotation.DocumentSet, Stats) {
	var total Stats
	out := make(annotation.DocumentSet, len(set))
	for id, a := range set {
		if a == nil {
			continue
		}
		doc, s := p.Process(a)
		out[id] = doc
		total = total.Add(s)
	}
	return out, total
}

//Personal.AI order the ending
