package testutil

import (
	"github.com/turtacn/NERRecon/internal/domain/annotation"
)

// Document builds a document whose span texts are read from title and
// abstract, so fixtures stay aligned with the source fields.
func Document(title, abstract string, spans ...annotation.Span) *annotation.Document {
	doc := annotation.NewDocument(annotation.Metadata{
		annotation.MetaTitle:     title,
		annotation.MetaAbstract:  abstract,
		annotation.MetaAnnotator: annotation.AnnotatorDistant,
	})
	for _, s := range spans {
		if text, ok := annotation.NewFieldText(doc.Text(s.Location)).Slice(s.Start, s.End); ok {
			s.Text = text
		}
		doc.Entities = append(doc.Entities, s)
	}
	return doc
}

// TitleSpan returns a title span.  Text is filled in by Document.
func TitleSpan(start, end int, label string) annotation.Span {
	return annotation.Span{Start: start, End: end, Location: annotation.LocationTitle, Label: label, Score: 1}
}

// AbstractSpan returns an abstract span.  Text is filled in by Document.
func AbstractSpan(start, end int, label string) annotation.Span {
	return annotation.Span{Start: start, End: end, Location: annotation.LocationAbstract, Label: label, Score: 1}
}

// Shared article text.
const (
	AspirinTitle    = "Aspirin treatment in mice"
	AspirinAbstract = "Aspirin treatment reduced ddf in mice."
)

// EnsembleOneSources returns the three sources the ensemble-1 policy reads.
func EnsembleOneSources() map[string]annotation.DocumentSet {
	return map[string]annotation.DocumentSet{
		"recall": {
			"1": Document(AspirinTitle, AspirinAbstract,
				TitleSpan(0, 7, annotation.LabelDrug),
				TitleSpan(21, 25, annotation.LabelHuman),
				AbstractSpan(26, 29, annotation.LabelDDF),
			),
		},
		"model_3": {
			"1": Document(AspirinTitle, AspirinAbstract,
				TitleSpan(21, 25, annotation.LabelAnimal),
				AbstractSpan(33, 37, annotation.LabelAnimal),
			),
		},
		"precision": {
			"1": Document(AspirinTitle, AspirinAbstract,
				AbstractSpan(26, 29, annotation.LabelDDF),
			),
		},
	}
}

// RawPredictions is an inference service output for one article.  Raw
// offsets index into "title abstract" with exclusive ends.  With thresholds
// from ThresholdsYAML the low-score abstract drug is dropped and three
// entities survive.
const RawPredictions = `{
  "1": {
    "title": "Aspirin treatment in mice",
    "abstract": "Aspirin treatment reduced ddf in mice.",
    "author": "Doe J",
    "journal": "Gut",
    "year": 2021,
    "pred_entities": [
      {"start_idx": 0, "end_idx": 7, "tag": "t", "text_span": "Aspirin", "entity_label": "drug", "score": 0.9},
      {"start_idx": 21, "end_idx": 25, "tag": "t", "text_span": "mice", "entity_label": "animal", "score": 0.8},
      {"start_idx": 26, "end_idx": 33, "tag": "a", "text_span": "Aspirin", "entity_label": "drug", "score": 0.4},
      {"start_idx": 52, "end_idx": 55, "tag": "a", "text_span": "ddf", "entity_label": "ddf", "score": 0.7}
    ]
  }
}`

// ThresholdsYAML holds thresholds for the labels in RawPredictions.
const ThresholdsYAML = `
drug: 0.5
animal: 0.5
ddf: 0.6
`

// Hyphenated article text.  The inference service splits "Salt-loading" and
// "bowel-disease" into two predictions each and spells DDF two ways.
const (
	HyphenTitle    = "Aspirin treatment in mice"
	HyphenAbstract = "Salt-loading and aspirin treatment reduced bowel-disease."
)

// HyphenPredictions is the inference output for the hyphenated article.
const HyphenPredictions = `{
  "7": {
    "title": "Aspirin treatment in mice",
    "abstract": "Salt-loading and aspirin treatment reduced bowel-disease.",
    "pred_entities": [
      {"start_idx": 0, "end_idx": 7, "tag": "t", "text_span": "Aspirin", "entity_label": "drug", "score": 0.9},
      {"start_idx": 21, "end_idx": 25, "tag": "t", "text_span": "mice", "entity_label": "animal", "score": 0.8},
      {"start_idx": 26, "end_idx": 30, "tag": "a", "text_span": "Salt", "entity_label": "chemical", "score": 0.7},
      {"start_idx": 31, "end_idx": 38, "tag": "a", "text_span": "loading", "entity_label": "chemical", "score": 0.6},
      {"start_idx": 43, "end_idx": 50, "tag": "a", "text_span": "aspirin", "entity_label": "drug", "score": 0.8},
      {"start_idx": 69, "end_idx": 74, "tag": "a", "text_span": "bowel", "entity_label": "DDF", "score": 0.7},
      {"start_idx": 74, "end_idx": 82, "tag": "a", "text_span": "-disease", "entity_label": "ddf", "score": 0.6}
    ]
  }
}`

//Personal.AI order the ending
