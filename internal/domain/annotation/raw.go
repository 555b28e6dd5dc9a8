package annotation

// RawEntity is one prediction as emitted by the inference service.  Offsets
// live in the concatenated "title + ' ' + abstract" space; Tag is "t" for
// title spans and "a" for abstract spans.
type RawEntity struct {
	Start int     `json:"start_idx"`
	End   int     `json:"end_idx"`
	Tag   string  `json:"tag"`
	Text  string  `json:"text_span"`
	Label string  `json:"entity_label"`
	Score float64 `json:"score"`
}

// Location returns the field the entity was predicted in.
func (e RawEntity) Location() Location {
	return LocationFromTag(e.Tag)
}

// Article is one input record of a raw prediction file: the article fields
// plus its predictions.
type Article struct {
	Metadata    Metadata
	Predictions []RawEntity
}

// ConcatText returns the text the raw offsets index into.
func (a *Article) ConcatText() string {
	return a.Metadata.Title() + " " + a.Metadata.Abstract()
}

// ArticleSet maps document ids to raw articles.
type ArticleSet map[string]*Article

// PredictionCount returns the total number of raw predictions.
func (s ArticleSet) PredictionCount() int {
	n := 0
	for _, a := range s {
		if a != nil {
			n += len(a.Predictions)
		}
	}
	return n
}

//Personal.AI order the ending
