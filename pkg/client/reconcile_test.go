package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/infrastructure/codec"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/file"
	httpserver "github.com/turtacn/NERRecon/internal/interfaces/http"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
	"github.com/turtacn/NERRecon/internal/testutil"
	"github.com/turtacn/NERRecon/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newServerClient serves the real router over a file store seeded with the
// shared fixtures.
func newServerClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	write := func(key string, data []byte) {
		p := filepath.Join(dir, key)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	write("thresholds.yaml", []byte(testutil.ThresholdsYAML))
	write("raw/recall.json", []byte(testutil.RawPredictions))
	for name, set := range testutil.EnsembleOneSources() {
		data, err := codec.New(codec.Options{}).EncodeDocuments(set)
		require.NoError(t, err)
		write("sets/"+name+".json", data)
	}

	svc, err := reconciliation.NewService(reconciliation.Dependencies{
		Store: file.NewStore(dir, nil),
	}, reconciliation.Options{Workers: 2, ThresholdsKey: "thresholds.yaml"})
	require.NoError(t, err)

	srv := httptest.NewServer(httpserver.NewRouter(httpserver.RouterConfig{
		ReconcileHandler: handlers.NewReconcileHandler(svc),
		HealthHandler:    handlers.NewHealthHandler("test"),
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithRetryMax(0))
	require.NoError(t, err)
	return c
}

func sourceSets(t *testing.T) map[string]DocumentSet {
	t.Helper()
	out := map[string]DocumentSet{}
	for name, set := range testutil.EnsembleOneSources() {
		data, err := codec.New(codec.Options{}).EncodeDocuments(set)
		require.NoError(t, err)
		out[name] = data
	}
	return out
}

func labelCounts(t *testing.T, docs DocumentSet) map[string]int {
	t.Helper()
	set, _, err := codec.New(codec.Options{}).DecodeDocuments(docs)
	require.NoError(t, err)
	return set.LabelCounts()
}

// ---------------------------------------------------------------------------
// Against the real router
// ---------------------------------------------------------------------------

func TestReconcile_Run(t *testing.T) {
	c := newServerClient(t)

	resp, err := c.Reconcile().Run(context.Background(), &RunRequest{
		RawSources: map[string]string{"recall": "raw/recall.json"},
		Sources:    map[string]string{"model_3": "sets/model_3.json", "precision": "sets/precision.json"},
		Output:     "out/ensemble_1.json",
	})
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, resp.Run.Status)
	assert.Equal(t, 4, resp.Run.Entities)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "ensemble-1", resp.Reports[0].Policy)
	assert.Equal(t, 1, resp.Postprocess.Filter.Dropped)
}

func TestReconcile_Postprocess(t *testing.T) {
	c := newServerClient(t)

	resp, err := c.Reconcile().Postprocess(context.Background(), &PostprocessRequest{
		Predictions: DocumentSet(testutil.RawPredictions),
		Thresholds:  map[string]float64{"drug": 0.5, "animal": 0.5, "ddf": 0.6},
		ApplyRules:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Stats.Filter.Dropped)
	assert.Equal(t, 1, resp.Decode.Decoded)
	assert.Equal(t, map[string]int{"drug": 1, "animal": 1, "ddf": 1}, labelCounts(t, resp.Documents))

	extended := 0
	for _, s := range resp.Rules {
		extended += s.Extended
	}
	assert.Equal(t, 1, extended)
}

func TestReconcile_Combine(t *testing.T) {
	c := newServerClient(t)

	resp, err := c.Reconcile().Combine(context.Background(), &CombineRequest{
		Policies: []string{"ensemble-1"},
		Sources:  sourceSets(t),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"drug": 1, "animal": 2, "ddf": 1}, labelCounts(t, resp.Documents))
	require.Len(t, resp.Reports, 1)
	assert.NotEmpty(t, resp.Reports[0].Steps)
	assert.Len(t, resp.Decode, 3)
}

func TestReconcile_Combine_MissingSource(t *testing.T) {
	c := newServerClient(t)
	sources := sourceSets(t)
	delete(sources, "precision")

	_, err := c.Reconcile().Combine(context.Background(), &CombineRequest{Sources: sources})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, string(errors.ErrCodeMissingSource), apiErr.Code)
}

func TestReconcile_ApplyRules(t *testing.T) {
	c := newServerClient(t)

	resp, err := c.Reconcile().ApplyRules(context.Background(), sourceSets(t)["recall"])
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Decode.Decoded)
	assert.NotEmpty(t, resp.Documents)
}

func TestReconcile_Policies(t *testing.T) {
	c := newServerClient(t)

	policies, err := c.Reconcile().Policies(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 3)
	names := map[string]Policy{}
	for _, p := range policies {
		names[p.Name] = p
	}
	require.Contains(t, names, "ensemble-1")
	assert.Equal(t, "recall", names["ensemble-1"].Base)
}

func TestRuns_WithoutHistory(t *testing.T) {
	c := newServerClient(t)

	_, err := c.Runs().List(context.Background(), 5)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	_, err = c.Runs().Get(context.Background(), "not-a-uuid")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_Healthy_RealRouter(t *testing.T) {
	require.NoError(t, newServerClient(t).Healthy(context.Background()))
}

// ---------------------------------------------------------------------------
// Request shaping
// ---------------------------------------------------------------------------

func TestReconcile_ClientSideValidation(t *testing.T) {
	c, _ := NewClient("http://unused.invalid")
	ctx := context.Background()

	_, err := c.Reconcile().Run(ctx, &RunRequest{Sources: map[string]string{"a": "b"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = c.Reconcile().Run(ctx, &RunRequest{Output: "o.json"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingSource))
	_, err = c.Reconcile().Postprocess(ctx, &PostprocessRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = c.Reconcile().Combine(ctx, &CombineRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingSource))
	_, err = c.Reconcile().ApplyRules(ctx, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = c.Runs().Get(ctx, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRuns_ListQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/runs", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"runs":[{"id":"a","status":"succeeded","entities":4}]}`))
	})
	runs, err := c.Runs().List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Entities)
}

func TestEntities_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/entities", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "drug", q.Get("label"))
		assert.Equal(t, "aspirin", q.Get("q"))
		assert.Equal(t, "10", q.Get("from"))
		assert.Empty(t, q.Get("size"))
		assert.False(t, q.Has("run_id"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total":    11,
			"from":     10,
			"entities": []map[string]interface{}{{"doc_id": "1", "label": "drug", "text_span": "Aspirin"}},
		})
	})

	page, err := c.Entities().Search(context.Background(), EntityQuery{Label: "drug", Text: "aspirin", From: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Entities, 1)
	assert.Equal(t, "Aspirin", page.Entities[0].Text)
}

//Personal.AI order the ending
