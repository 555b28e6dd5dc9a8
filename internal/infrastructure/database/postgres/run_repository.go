package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// DBTX is the subset of *pgxpool.Pool used by RunRepository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 50

var entityColumns = []string{
	"run_id", "doc_id", "location", "start_idx", "end_idx", "text_span", "label", "score",
}

// RunRepository persists runs and their output entities.
type RunRepository struct {
	db     DBTX
	logger logging.Logger
}

var _ annotation.RunRepository = (*RunRepository)(nil)

// NewRunRepository returns a repository over db.
func NewRunRepository(db DBTX, log logging.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logging.OrNop(log).Named("run_repository")}
}

// ─────────────────────────────────────────────────────────────────────────────
// SaveRun
// ─────────────────────────────────────────────────────────────────────────────

// SaveRun inserts run or updates the mutable columns of an existing record.
func (r *RunRepository) SaveRun(ctx context.Context, run *annotation.Run) error {
	stats, err := marshalStats(run.Stats)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO reconciliation_runs (
			id, policy, output, status, documents, entities, stats, error, started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			documents   = EXCLUDED.documents,
			entities    = EXCLUDED.entities,
			stats       = EXCLUDED.stats,
			error       = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.Policy, run.Output, string(run.Status), run.Documents, run.Entities,
		stats, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		r.logger.Error("save run failed", logging.String(logging.FieldRunID, run.ID.String()), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save run")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SaveDocuments
// ─────────────────────────────────────────────────────────────────────────────

// SaveDocuments replaces the documents stored for runID with set and returns
// the number of entity rows written.  Documents go in through a batch and
// entities through COPY, both inside one transaction.
func (r *RunRepository) SaveDocuments(ctx context.Context, runID uuid.UUID, set annotation.DocumentSet) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM run_documents WHERE run_id = $1`, runID); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear run documents")
	}

	batch := &pgx.Batch{}
	for _, id := range set.IDs() {
		doc := set[id]
		if doc == nil {
			continue
		}
		meta, err := marshalJSONB(doc.Metadata)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO run_documents (run_id, doc_id, title, metadata, relations)
			VALUES ($1,$2,$3,$4,$5)`,
			runID, id, doc.Metadata.Title(), meta, relationsJSONB(doc.Relations),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert run documents")
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"run_entities"}, entityColumns, pgx.CopyFromRows(EntityRows(runID, set)))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to copy run entities")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit run documents")
	}
	r.logger.Debug("run documents saved",
		logging.String(logging.FieldRunID, runID.String()),
		logging.Int("documents", len(set)),
		logging.Int64("entities", n),
	)
	return n, nil
}

// EntityRows flattens set into COPY rows ordered by document id.
func EntityRows(runID uuid.UUID, set annotation.DocumentSet) [][]any {
	rows := make([][]any, 0, set.EntityCount())
	for _, id := range set.IDs() {
		if set[id] == nil {
			continue
		}
		for _, e := range set[id].Entities {
			rows = append(rows, []any{
				runID, id, string(e.Location), e.Start, e.End, e.Text, e.Label, e.Score,
			})
		}
	}
	return rows
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

const runColumns = `id, policy, output, status, documents, entities, stats, error, started_at, finished_at`

// GetRun loads one run.
func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*annotation.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM reconciliation_runs WHERE id = $1`, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "run %s not found", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load run")
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*annotation.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Query(ctx, `SELECT `+runColumns+` FROM reconciliation_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list runs")
	}
	defer rows.Close()

	runs := make([]*annotation.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate runs")
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*annotation.Run, error) {
	var (
		run      annotation.Run
		status   string
		stats    []byte
		finished *time.Time
	)
	if err := row.Scan(&run.ID, &run.Policy, &run.Output, &status, &run.Documents, &run.Entities,
		&stats, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = annotation.RunStatus(status)
	run.FinishedAt = finished
	if len(stats) > 0 {
		if err := sonic.Unmarshal(stats, &run.Stats); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONB helpers
// ─────────────────────────────────────────────────────────────────────────────

func marshalStats(stats map[string]int) ([]byte, error) {
	if stats == nil {
		return []byte("{}"), nil
	}
	b, err := sonic.Marshal(stats)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run stats")
	}
	return b, nil
}

func marshalJSONB(meta annotation.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := sonic.Marshal(meta)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode document metadata")
	}
	return b, nil
}

func relationsJSONB(rel json.RawMessage) []byte {
	if len(rel) == 0 {
		return nil
	}
	return []byte(rel)
}

//Personal.AI order the ending
