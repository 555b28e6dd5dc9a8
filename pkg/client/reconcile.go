package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/turtacn/NERRecon/pkg/errors"
)

// ReconcileClient drives the pipeline endpoints.
type ReconcileClient struct {
	client *Client
}

// RunRequest starts a run over document sets stored on the server.
type RunRequest struct {
	Policies      []string          `json:"policies,omitempty"`
	Sources       map[string]string `json:"sources,omitempty"`
	RawSources    map[string]string `json:"raw_sources,omitempty"`
	ThresholdsKey string            `json:"thresholds_key,omitempty"`
	Output        string            `json:"output"`
	StripMetadata *bool             `json:"strip_metadata,omitempty"`
}

// RunResponse reports a finished run.
type RunResponse struct {
	Run         Run                     `json:"run"`
	Reports     []PolicyReport          `json:"reports"`
	Postprocess PostprocessStats        `json:"postprocess"`
	Rules       map[string]RuleStats    `json:"rules,omitempty"`
	Decode      map[string]DecodeReport `json:"decode,omitempty"`
}

// Run executes the pipeline over stored sets and writes req.Output.  A
// concurrent run on the same output fails with HTTP 409.
func (r *ReconcileClient) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if req == nil || req.Output == "" {
		return nil, errors.New(errors.ErrCodeValidation, "output is required")
	}
	if len(req.Sources)+len(req.RawSources) == 0 {
		return nil, errors.New(errors.ErrCodeMissingSource, "at least one source is required")
	}
	var resp RunResponse
	if err := r.client.post(ctx, "/reconcile", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostprocessRequest carries raw predictions inline.  Thresholds win over
// ThresholdsKey.
type PostprocessRequest struct {
	Predictions   DocumentSet        `json:"predictions"`
	Thresholds    map[string]float64 `json:"thresholds,omitempty"`
	ThresholdsKey string             `json:"thresholds_key,omitempty"`
	ApplyRules    bool               `json:"apply_rules,omitempty"`
	StripMetadata bool               `json:"strip_metadata,omitempty"`
}

// PostprocessResponse is the canonical set built from raw predictions.
type PostprocessResponse struct {
	Documents DocumentSet          `json:"documents"`
	Stats     PostprocessStats     `json:"stats"`
	Rules     map[string]RuleStats `json:"rules,omitempty"`
	Decode    DecodeReport         `json:"decode"`
}

// Postprocess filters, merges and normalizes raw predictions.
func (r *ReconcileClient) Postprocess(ctx context.Context, req *PostprocessRequest) (*PostprocessResponse, error) {
	if req == nil || len(req.Predictions) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "predictions are required")
	}
	var resp PostprocessResponse
	if err := r.client.post(ctx, "/postprocess", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CombineRequest carries canonical source sets inline.
type CombineRequest struct {
	Policies      []string               `json:"policies,omitempty"`
	Sources       map[string]DocumentSet `json:"sources"`
	StripMetadata bool                   `json:"strip_metadata,omitempty"`
}

// CombineResponse is the reconciled set with a report per applied policy.
type CombineResponse struct {
	Documents DocumentSet             `json:"documents"`
	Reports   []PolicyReport          `json:"reports"`
	Decode    map[string]DecodeReport `json:"decode"`
}

// Combine reconciles inline sets under the given policies, or the server's
// default policy when none is named.
func (r *ReconcileClient) Combine(ctx context.Context, req *CombineRequest) (*CombineResponse, error) {
	if req == nil || len(req.Sources) == 0 {
		return nil, errors.New(errors.ErrCodeMissingSource, "at least one source is required")
	}
	var resp CombineResponse
	if err := r.client.post(ctx, "/combine", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RulesResponse is a set after span extension.
type RulesResponse struct {
	Documents DocumentSet          `json:"documents"`
	Rules     map[string]RuleStats `json:"rules"`
	Decode    DecodeReport         `json:"decode"`
}

// ApplyRules runs the span extension rules over a canonical set.
func (r *ReconcileClient) ApplyRules(ctx context.Context, documents DocumentSet) (*RulesResponse, error) {
	if len(documents) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "documents are required")
	}
	var resp RulesResponse
	body := struct {
		Documents DocumentSet `json:"documents"`
	}{documents}
	if err := r.client.post(ctx, "/rules", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Policies lists the policies the server knows.
func (r *ReconcileClient) Policies(ctx context.Context) ([]Policy, error) {
	var resp struct {
		Policies []Policy `json:"policies"`
	}
	if err := r.client.get(ctx, "/policies", &resp); err != nil {
		return nil, err
	}
	return resp.Policies, nil
}

// RunsClient reads the run history.
type RunsClient struct {
	client *Client
}

// List returns up to limit recent runs, newest first.  A limit of zero uses
// the server default.
func (r *RunsClient) List(ctx context.Context, limit int) ([]Run, error) {
	path := "/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := r.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Get returns one run.
func (r *RunsClient) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeValidation, "run id is required")
	}
	var run Run
	if err := r.client.get(ctx, fmt.Sprintf("/runs/%s", url.PathEscape(id)), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// EntitiesClient queries exported entities.
type EntitiesClient struct {
	client *Client
}

// EntityQuery filters the entity search.  Empty fields match everything.
type EntityQuery struct {
	RunID    string
	DocID    string
	Label    string
	Location string
	Text     string
	From     int
	Size     int
}

func (q EntityQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("run_id", q.RunID)
	set("doc_id", q.DocID)
	set("label", q.Label)
	set("location", q.Location)
	set("q", q.Text)
	if q.From > 0 {
		v.Set("from", strconv.Itoa(q.From))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// EntityPage is one page of search results.
type EntityPage struct {
	Total    int      `json:"total"`
	From     int      `json:"from"`
	Entities []Entity `json:"entities"`
}

// Search returns one page of matching entities.
func (e *EntitiesClient) Search(ctx context.Context, q EntityQuery) (*EntityPage, error) {
	path := "/entities"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page EntityPage
	if err := e.client.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

//Personal.AI order the ending
