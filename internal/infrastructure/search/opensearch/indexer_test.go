package opensearch

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/testutil"
	"github.com/turtacn/NERRecon/pkg/errors"
)

func newTestIndexer(t *testing.T, serverURL string, cfg IndexerConfig) *Indexer {
	t.Helper()
	c, err := newClient(newTestConfig(serverURL), nil)
	require.NoError(t, err)
	idx := NewIndexer(c, cfg, nil)
	idx.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return idx
}

func sampleRun() (*annotation.Run, annotation.DocumentSet) {
	run := annotation.NewRun("ensemble-1", "out/ensemble_1.json")
	run.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	set := annotation.DocumentSet{
		"2": testutil.Document(testutil.AspirinTitle, testutil.AspirinAbstract,
			testutil.AbstractSpan(26, 29, annotation.LabelDDF)),
		"1": testutil.Document(testutil.AspirinTitle, testutil.AspirinAbstract,
			testutil.TitleSpan(0, 7, annotation.LabelDrug),
			testutil.TitleSpan(21, 25, annotation.LabelAnimal)),
	}
	return run, set
}

func TestIndexer_Defaults(t *testing.T) {
	idx := NewIndexer(nil, IndexerConfig{}, nil)
	assert.Equal(t, "nerrecon-entities", idx.IndexName())
	assert.Equal(t, 500, idx.config.BulkBatchSize)
	assert.Equal(t, "false", idx.config.RefreshPolicy)
}

func TestIndexer_Documents(t *testing.T) {
	idx := NewIndexer(nil, IndexerConfig{IndexPrefix: "test"}, nil)
	run, set := sampleRun()

	docs := idx.Documents(run, set)
	require.Len(t, docs, 3)
	assert.Equal(t, "1", docs[0].DocID)
	assert.Equal(t, "Aspirin", docs[0].Text)
	assert.Equal(t, "title", docs[0].Location)
	assert.Equal(t, "ensemble-1", docs[0].Policy)
	assert.Equal(t, "2", docs[2].DocID)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001:1:title:0:7:drug", docs[0].ID())
}

func TestEnsureIndex_Creates(t *testing.T) {
	var gotPath, gotMethod string
	var mapping map[string]interface{}
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &mapping)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"test-entities"}`))
	})
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{IndexPrefix: "test"})
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/test-entities", gotPath)
	assert.Contains(t, mapping, "mappings")
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"root_cause":[{"type":"resource_already_exists_exception","reason":"exists"}],"type":"resource_already_exists_exception","reason":"index [test-entities] already exists"},"status":400}`))
	})
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{IndexPrefix: "test"})
	assert.NoError(t, idx.EnsureIndex(context.Background()))
}

func TestEnsureIndex_Failure(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"root_cause":[],"type":"security_exception","reason":"no permissions"},"status":403}`))
	})
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{})
	err := idx.EnsureIndex(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestIndexRun_BatchesAndReportsFailures(t *testing.T) {
	var batches [][]string
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		var lines []string
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		batches = append(batches, lines)

		w.Header().Set("Content-Type", "application/json")
		if len(batches) == 1 {
			_, _ = w.Write([]byte(`{"took":1,"errors":true,"items":[
				{"index":{"_index":"nerrecon-entities","_id":"a","status":201}},
				{"index":{"_index":"nerrecon-entities","_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad score"}}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"took":1,"errors":false,"items":[{"index":{"_index":"nerrecon-entities","_id":"c","status":201}}]}`))
	})
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{BulkBatchSize: 2})
	run, set := sampleRun()

	res, err := idx.IndexRun(context.Background(), run, set)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[1], 2)
	assert.True(t, strings.Contains(batches[0][0], `"_index":"nerrecon-entities"`))
	assert.True(t, strings.Contains(batches[0][1], `"text_span":"Aspirin"`))

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, BulkItemError{DocID: "b", ErrorType: "mapper_parsing_exception", Reason: "bad score"}, res.Errors[0])
}

func TestIndexRun_EmptySetSendsNothing(t *testing.T) {
	calls := 0
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) { calls++ })
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{})
	res, err := idx.IndexRun(context.Background(), annotation.NewRun("p", "o"), annotation.DocumentSet{})
	require.NoError(t, err)
	assert.Zero(t, res.Succeeded)
	assert.Zero(t, calls)
}

func TestIndexRun_TransportFailure(t *testing.T) {
	server := newTestServer(statusHandler(http.StatusInternalServerError))
	defer server.Close()

	idx := newTestIndexer(t, server.URL, IndexerConfig{})
	run, set := sampleRun()
	_, err := idx.IndexRun(context.Background(), run, set)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

//Personal.AI order the ending
