package postprocess

import (
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// Thresholds maps labels to the minimum score a span needs to survive.
// Lookup is case-insensitive, so a "DDF" entry also serves "ddf" spans.
// A label without an entry is not claimed and its spans are dropped.
type Thresholds struct {
	byKey map[string]float64
}

// NewThresholds validates m and builds a Thresholds.  Every value must lie in
// [0, 1] and no two labels may fold to the same key with different values.
func NewThresholds(m map[string]float64) (*Thresholds, error) {
	t := &Thresholds{byKey: make(map[string]float64, len(m))}
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, label := range labels {
		v := m[label]
		if v < 0 || v > 1 {
			return nil, errors.Newf(errors.ErrCodeInvalidThreshold, "threshold for %q must lie in [0,1], got %v", label, v)
		}
		key := annotation.LabelKey(label)
		if prev, dup := t.byKey[key]; dup && prev != v {
			return nil, errors.Newf(errors.ErrCodeInvalidThreshold, "conflicting thresholds for %q: %v and %v", label, prev, v)
		}
		t.byKey[key] = v
	}
	return t, nil
}

// ParseThresholds decodes a YAML or JSON label -> score mapping.
func ParseThresholds(data []byte) (*Thresholds, error) {
	var m map[string]float64
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidThreshold, "parse thresholds")
	}
	if len(m) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidThreshold, "threshold mapping is empty")
	}
	return NewThresholds(m)
}

// Lookup returns the threshold configured for label.
func (t *Thresholds) Lookup(label string) (float64, bool) {
	v, ok := t.byKey[annotation.LabelKey(label)]
	return v, ok
}

// Keep reports whether a span with the given label and score survives, and
// whether its label is claimed at all.
func (t *Thresholds) Keep(label string, score float64) (keep, known bool) {
	thr, ok := t.Lookup(label)
	if !ok {
		return false, false
	}
	return score >= thr, true
}

// Map returns a copy of the thresholds keyed by folded label.
func (t *Thresholds) Map() map[string]float64 {
	out := make(map[string]float64, len(t.byKey))
	for k, v := range t.byKey {
		out[k] = v
	}
	return out
}

// Len returns the number of configured labels.
func (t *Thresholds) Len() int {
	return len(t.byKey)
}

// FilterRaw keeps the raw predictions whose score reaches their label's
// threshold.  The input slice is not modified.
func (t *Thresholds) FilterRaw(preds []annotation.RawEntity) ([]annotation.RawEntity, FilterStats) {
	var stats FilterStats
	out := make([]annotation.RawEntity, 0, len(preds))
	for _, p := range preds {
		keep, known := t.Keep(p.Label, p.Score)
		switch {
		case !known:
			stats.UnknownLabel++
			stats.Dropped++
		case keep:
			stats.Kept++
			out = append(out, p)
		default:
			stats.Dropped++
		}
	}
	return out, stats
}

//Personal.AI order the ending
