package postprocess

// Every stage returns its counters by value.  Callers sum them with Add; no
// stage updates shared state, so documents can be processed concurrently.

// FilterStats counts threshold filter outcomes.
type FilterStats struct {
	Kept         int `json:"kept"`
	Dropped      int `json:"dropped"`
	UnknownLabel int `json:"unknown_label"`
}

// Add returns the element-wise sum of s and o.
func (s FilterStats) Add(o FilterStats) FilterStats {
	return FilterStats{
		Kept:         s.Kept + o.Kept,
		Dropped:      s.Dropped + o.Dropped,
		UnknownLabel: s.UnknownLabel + o.UnknownLabel,
	}
}

// MergeStats counts consecutive-span merges.
type MergeStats struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Merged int `json:"merged"`
}

// Add returns the element-wise sum of s and o.
func (s MergeStats) Add(o MergeStats) MergeStats {
	return MergeStats{
		Input:  s.Input + o.Input,
		Output: s.Output + o.Output,
		Merged: s.Merged + o.Merged,
	}
}

// NormalizeStats counts index normalization outcomes.
type NormalizeStats struct {
	Documents  int `json:"documents"`
	Entities   int `json:"entities"`
	Duplicates int `json:"duplicates"`
	OutOfRange int `json:"out_of_range"`
	Misaligned int `json:"misaligned"`
}

// Add returns the element-wise sum of s and o.
func (s NormalizeStats) Add(o NormalizeStats) NormalizeStats {
	return NormalizeStats{
		Documents:  s.Documents + o.Documents,
		Entities:   s.Entities + o.Entities,
		Duplicates: s.Duplicates + o.Duplicates,
		OutOfRange: s.OutOfRange + o.OutOfRange,
		Misaligned: s.Misaligned + o.Misaligned,
	}
}

// RuleStats counts span extension outcomes for one rule.
type RuleStats struct {
	Total    int `json:"total"`
	Extended int `json:"extended"`
	Reverted int `json:"reverted,omitempty"`
}

// Add returns the element-wise sum of s and o.
func (s RuleStats) Add(o RuleStats) RuleStats {
	return RuleStats{
		Total:    s.Total + o.Total,
		Extended: s.Extended + o.Extended,
		Reverted: s.Reverted + o.Reverted,
	}
}

// RuleReport holds RuleStats keyed by rule name.
type RuleReport map[string]RuleStats

// Add returns a new report with the per-rule sums of r and o.
func (r RuleReport) Add(o RuleReport) RuleReport {
	out := make(RuleReport, len(r)+len(o))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range o {
		out[k] = out[k].Add(v)
	}
	return out
}

// Totals sums the stats of every rule.
func (r RuleReport) Totals() RuleStats {
	var t RuleStats
	for _, v := range r {
		t = t.Add(v)
	}
	return t
}

// Stats aggregates every post-processing stage for one batch.
type Stats struct {
	Filter    FilterStats    `json:"filter"`
	Merge     MergeStats     `json:"merge"`
	Normalize NormalizeStats `json:"normalize"`
}

// Add returns the stage-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Filter:    s.Filter.Add(o.Filter),
		Merge:     s.Merge.Add(o.Merge),
		Normalize: s.Normalize.Add(o.Normalize),
	}
}

// Flatten renders the stats as a flat counter map for run records and
// metrics labels.
func (s Stats) Flatten() map[string]int {
	return map[string]int{
		"filter_kept":            s.Filter.Kept,
		"filter_dropped":         s.Filter.Dropped,
		"filter_unknown_label":   s.Filter.UnknownLabel,
		"merge_merged":           s.Merge.Merged,
		"normalize_documents":    s.Normalize.Documents,
		"normalize_entities":     s.Normalize.Entities,
		"normalize_duplicates":   s.Normalize.Duplicates,
		"normalize_out_of_range": s.Normalize.OutOfRange,
		"normalize_misaligned":   s.Normalize.Misaligned,
	}
}

//Personal.AI order the ending
