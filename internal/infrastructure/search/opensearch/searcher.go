package opensearch

import (
	"bytes"
	"context"

	"github.com/bytedance/sonic"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// MaxPageSize caps EntityQuery.Size.
const MaxPageSize = 1000

// EntityQuery filters indexed entities.  Empty fields do not filter; Text is
// a full-text match on the span text.
type EntityQuery struct {
	RunID    string
	DocID    string
	Label    string
	Location string
	Text     string
	From     int
	Size     int
}

// EntitySearchResult is one page of matches.
type EntitySearchResult struct {
	Total    int
	Entities []EntityDocument
}

// Searcher queries the entity index.
type Searcher struct {
	client  *Client
	indexer *Indexer
	logger  logging.Logger
}

// NewSearcher shares the index naming of indexer.
func NewSearcher(client *Client, indexer *Indexer, logger logging.Logger) *Searcher {
	return &Searcher{client: client, indexer: indexer, logger: logging.OrNop(logger).Named("entity_searcher")}
}

// BuildQuery renders q as an OpenSearch request body.  Results are ordered
// by document and offset so that pages are stable.
func BuildQuery(q EntityQuery) map[string]interface{} {
	var filters []interface{}
	term := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	term("run_id", q.RunID)
	term("doc_id", q.DocID)
	term("label", q.Label)
	term("location", q.Location)

	boolQuery := map[string]interface{}{}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{"match": map[string]interface{}{"text_span": q.Text}},
		}
	}

	size := q.Size
	if size <= 0 {
		size = 100
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}
	return map[string]interface{}{
		"from":  from,
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"doc_id": "asc"},
			map[string]interface{}{"location": "asc"},
			map[string]interface{}{"start_idx": "asc"},
		},
	}
}

// SearchEntities runs q against the entity index.
func (s *Searcher) SearchEntities(ctx context.Context, q EntityQuery) (*EntitySearchResult, error) {
	body, err := sonic.Marshal(BuildQuery(q))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query")
	}
	resp, err := s.client.API().Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.indexer.IndexName()},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "entity search failed")
	}

	out := &EntitySearchResult{
		Total:    resp.Hits.Total.Value,
		Entities: make([]EntityDocument, 0, len(resp.Hits.Hits)),
	}
	for _, hit := range resp.Hits.Hits {
		var doc EntityDocument
		if err := sonic.Unmarshal(hit.Source, &doc); err != nil {
			s.logger.Warn("skipping undecodable hit", logging.String("id", hit.ID), logging.Err(err))
			continue
		}
		out.Entities = append(out.Entities, doc)
	}
	return out, nil
}

//Personal.AI order the ending
