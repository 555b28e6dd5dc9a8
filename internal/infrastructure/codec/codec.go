// Package codec reads and writes the JSON forms of prediction sets: the raw
// inference output and the canonical document set.
package codec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// rawPredictionsKey holds the inference output inside a raw article record.
const rawPredictionsKey = "pred_entities"

// DecodeReport lists the records skipped while decoding.
type DecodeReport struct {
	Decoded int `json:"decoded"`
	Skipped int `json:"skipped"`
	// Reasons maps a skipped document id to the decode failure.
	Reasons map[string]string `json:"reasons,omitempty"`
}

func (r *DecodeReport) skip(id string, err error) {
	r.Skipped++
	if r.Reasons == nil {
		r.Reasons = make(map[string]string)
	}
	r.Reasons[id] = err.Error()
}

// Options controls encoding.
type Options struct {
	// IncludeScores keeps span scores in canonical output.
	IncludeScores bool
	// Indent is the per-level indent; empty writes compact JSON.
	Indent string
}

// Codec encodes and decodes prediction sets with sonic.
type Codec struct {
	api  sonic.API
	opts Options
}

// New returns a Codec.
func New(opts Options) *Codec {
	api := sonic.Config{
		SortMapKeys:    true,
		UseNumber:      true,
		ValidateString: true,
	}.Froze()
	return &Codec{api: api, opts: opts}
}

// Options returns the encoding options.
func (c *Codec) Options() Options {
	return c.opts
}

// splitRecords decodes the top-level id -> record object.  A payload that is
// not an object is fatal.
func (c *Codec) splitRecords(data []byte) (map[string]json.RawMessage, error) {
	var records map[string]json.RawMessage
	if err := c.api.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMalformedInput, "prediction set must be a JSON object keyed by document id")
	}
	return records, nil
}

// DecodeRaw parses inference output.  Records that are not well formed are
// skipped and listed in the report.
func (c *Codec) DecodeRaw(data []byte) (annotation.ArticleSet, DecodeReport, error) {
	var report DecodeReport
	records, err := c.splitRecords(data)
	if err != nil {
		return nil, report, err
	}
	out := make(annotation.ArticleSet, len(records))
	for id, rec := range records {
		a, err := c.decodeArticle(rec)
		if err != nil {
			report.skip(id, err)
			continue
		}
		out[id] = a
		report.Decoded++
	}
	return out, report, nil
}

func (c *Codec) decodeArticle(rec json.RawMessage) (*annotation.Article, error) {
	var fields map[string]json.RawMessage
	if err := c.api.Unmarshal(rec, &fields); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	a := &annotation.Article{Metadata: make(annotation.Metadata, len(fields))}
	for k, v := range fields {
		if k == rawPredictionsKey {
			if err := c.api.Unmarshal(v, &a.Predictions); err != nil {
				return nil, fmt.Errorf("%s: %w", rawPredictionsKey, err)
			}
			continue
		}
		var val interface{}
		if err := c.api.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		a.Metadata[k] = val
	}
	for _, k := range []string{annotation.MetaTitle, annotation.MetaAbstract} {
		if v, ok := a.Metadata[k]; ok {
			if _, isStr := v.(string); !isStr && v != nil {
				return nil, fmt.Errorf("field %s must be a string", k)
			}
		}
	}
	for i, p := range a.Predictions {
		if p.Start < 0 || p.End < p.Start {
			return nil, fmt.Errorf("prediction %d: invalid range [%d,%d)", i, p.Start, p.End)
		}
	}
	return a, nil
}

// DecodeDocuments parses a canonical document set.  Labels are canonicalized
// on the way in.  Malformed documents are skipped and reported.
func (c *Codec) DecodeDocuments(data []byte) (annotation.DocumentSet, DecodeReport, error) {
	var report DecodeReport
	records, err := c.splitRecords(data)
	if err != nil {
		return nil, report, err
	}
	out := make(annotation.DocumentSet, len(records))
	for id, rec := range records {
		d, err := c.decodeDocument(rec)
		if err != nil {
			report.skip(id, err)
			continue
		}
		out[id] = d
		report.Decoded++
	}
	return out, report, nil
}

func (c *Codec) decodeDocument(rec json.RawMessage) (*annotation.Document, error) {
	var d annotation.Document
	if err := c.api.Unmarshal(rec, &d); err != nil {
		return nil, err
	}
	if d.Entities == nil {
		d.Entities = []annotation.Span{}
	}
	for i := range d.Entities {
		e := &d.Entities[i]
		if !e.Location.Valid() {
			return nil, fmt.Errorf("entity %d: unknown location %q", i, e.Location)
		}
		if e.Start < 0 || e.End < e.Start {
			return nil, fmt.Errorf("entity %d: invalid range [%d,%d)", i, e.Start, e.End)
		}
		e.Label = annotation.CanonicalLabel(e.Label)
	}
	return &d, nil
}

// EncodeDocuments writes set in canonical form with ids in ascending order.
// Scores are dropped unless IncludeScores is set, in which case every span
// carries one, zero included.
func (c *Codec) EncodeDocuments(set annotation.DocumentSet) ([]byte, error) {
	var v interface{} = set
	if !c.opts.IncludeScores {
		v = withoutScores(set)
	}
	var (
		data []byte
		err  error
	)
	if c.opts.Indent != "" {
		data, err = c.api.MarshalIndent(v, "", c.opts.Indent)
	} else {
		data, err = c.api.Marshal(v)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode document set")
	}
	return data, nil
}

// Marshal encodes an arbitrary value with the codec's settings.  It is used
// for reports and event payloads.
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	data, err := c.api.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode")
	}
	return data, nil
}

// Unmarshal decodes data into v.
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	if err := c.api.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeMalformedInput, "decode")
	}
	return nil
}

// scorelessSpan is the canonical span form without the score key.
type scorelessSpan struct {
	Start    int                 `json:"start_idx"`
	End      int                 `json:"end_idx"`
	Location annotation.Location `json:"location"`
	Text     string              `json:"text_span"`
	Label    string              `json:"label"`
}

type scorelessDocument struct {
	Metadata  annotation.Metadata `json:"metadata,omitempty"`
	Entities  []scorelessSpan     `json:"entities"`
	Relations json.RawMessage     `json:"relations,omitempty"`
}

func withoutScores(set annotation.DocumentSet) map[string]*scorelessDocument {
	out := make(map[string]*scorelessDocument, len(set))
	for id, d := range set {
		if d == nil {
			continue
		}
		entities := make([]scorelessSpan, len(d.Entities))
		for i, e := range d.Entities {
			entities[i] = scorelessSpan{Start: e.Start, End: e.End, Location: e.Location, Text: e.Text, Label: e.Label}
		}
		out[id] = &scorelessDocument{Metadata: d.Metadata, Entities: entities, Relations: d.Relations}
	}
	return out
}

// SkippedIDs returns the skipped ids in ascending order.
func (r DecodeReport) SkippedIDs() []string {
	ids := make([]string, 0, len(r.Reasons))
	for id := range r.Reasons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

//Personal.AI order the ending
