package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// DefaultIndexPrefix names the entity index when none is configured.
const DefaultIndexPrefix = "nerrecon"

var ErrIndexCreationFailed = errors.New(errors.ErrCodeExternalService, "index creation failed")

// EntityDocument is the indexed form of one reconciled span.
type EntityDocument struct {
	RunID     string    `json:"run_id"`
	Policy    string    `json:"policy"`
	Output    string    `json:"output"`
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title,omitempty"`
	Location  string    `json:"location"`
	Start     int       `json:"start_idx"`
	End       int       `json:"end_idx"`
	Text      string    `json:"text_span"`
	Label     string    `json:"label"`
	Score     float64   `json:"score,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

// ID is the stable index id of the entity within its run.  Re-indexing a
// run overwrites its entities instead of duplicating them.
func (d EntityDocument) ID() string {
	return fmt.Sprintf("%s:%s:%s:%d:%d:%s", d.RunID, d.DocID, d.Location, d.Start, d.End, d.Label)
}

// EntityIndexMapping returns the settings and mappings of the entity index.
func EntityIndexMapping() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	integer := map[string]interface{}{"type": "integer"}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"run_id":    keyword,
				"policy":    keyword,
				"output":    keyword,
				"doc_id":    keyword,
				"title":     map[string]interface{}{"type": "text"},
				"location":  keyword,
				"start_idx": integer,
				"end_idx":   integer,
				"text_span": map[string]interface{}{
					"type":   "text",
					"fields": map[string]interface{}{"raw": keyword},
				},
				"label":      keyword,
				"score":      map[string]interface{}{"type": "float"},
				"indexed_at": map[string]interface{}{"type": "date"},
			},
		},
	}
}

// BulkItemError describes one rejected entity.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarizes IndexRun.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	IndexPrefix   string
	BulkBatchSize int
	RefreshPolicy string
}

// Indexer writes reconciled entities to the entity index.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
	now    func() time.Time
}

// NewIndexer creates a new Indexer.
func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = DefaultIndexPrefix
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "false"
	}
	return &Indexer{
		client: client,
		config: cfg,
		logger: logging.OrNop(logger).Named("entity_indexer"),
		now:    time.Now,
	}
}

// IndexName returns the entity index name.
func (i *Indexer) IndexName() string {
	return i.config.IndexPrefix + "-entities"
}

// EnsureIndex creates the entity index unless it already exists.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	body, err := sonic.Marshal(EntityIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	_, err = i.client.API().Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.IndexName(),
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return ErrIndexCreationFailed.WithCause(err).WithDetail(i.IndexName())
	}
	i.logger.Info("Index created", logging.String("index", i.IndexName()))
	return nil
}

// Documents flattens set into entity documents ordered by document id.
func (i *Indexer) Documents(run *annotation.Run, set annotation.DocumentSet) []EntityDocument {
	now := i.now().UTC()
	runID := run.ID.String()
	docs := make([]EntityDocument, 0, set.EntityCount())
	for _, id := range set.IDs() {
		d := set[id]
		if d == nil {
			continue
		}
		for _, e := range d.Entities {
			docs = append(docs, EntityDocument{
				RunID:     runID,
				Policy:    run.Policy,
				Output:    run.Output,
				DocID:     id,
				Title:     d.Metadata.Title(),
				Location:  string(e.Location),
				Start:     e.Start,
				End:       e.End,
				Text:      e.Text,
				Label:     e.Label,
				Score:     e.Score,
				IndexedAt: now,
			})
		}
	}
	return docs
}

// IndexRun bulk-indexes every entity of set in batches.  Per-entity
// rejections are reported in the result; a transport failure aborts with
// the counts so far.
func (i *Indexer) IndexRun(ctx context.Context, run *annotation.Run, set annotation.DocumentSet) (*BulkResult, error) {
	docs := i.Documents(run, set)
	result := &BulkResult{}
	index := i.IndexName()

	for start := 0; start < len(docs); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		var buf bytes.Buffer
		for _, doc := range docs[start:end] {
			id := doc.ID()
			meta, _ := sonic.Marshal(map[string]map[string]string{"index": {"_index": index, "_id": id}})
			src, err := sonic.Marshal(doc)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{DocID: id, ErrorType: "serialization_error", Reason: err.Error()})
				continue
			}
			buf.Write(meta)
			buf.WriteByte('\n')
			buf.Write(src)
			buf.WriteByte('\n')
		}
		if buf.Len() == 0 {
			continue
		}

		resp, err := i.client.API().Bulk(ctx, opensearchapi.BulkReq{
			Body:   bytes.NewReader(buf.Bytes()),
			Params: opensearchapi.BulkParams{Refresh: i.config.RefreshPolicy},
		})
		if err != nil {
			return result, errors.Wrap(err, errors.ErrCodeExternalService, "bulk request failed")
		}

		for _, item := range resp.Items {
			for _, v := range item {
				if v.Status >= 200 && v.Status < 300 {
					result.Succeeded++
					continue
				}
				result.Failed++
				e := BulkItemError{DocID: v.ID}
				if v.Error != nil {
					e.ErrorType = v.Error.Type
					e.Reason = v.Error.Reason
				}
				result.Errors = append(result.Errors, e)
			}
		}
	}

	i.logger.Info("Bulk index completed",
		logging.String(logging.FieldRunID, run.ID.String()),
		logging.Int("total", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}

//Personal.AI order the ending
