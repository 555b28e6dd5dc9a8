package annotation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one execution of the reconciliation pipeline.
type Run struct {
	ID         uuid.UUID      `json:"id"`
	Policy     string         `json:"policy"`
	Output     string         `json:"output"`
	Status     RunStatus      `json:"status"`
	Documents  int            `json:"documents"`
	Entities   int            `json:"entities"`
	Stats      map[string]int `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// NewRun starts a run record for the given policy and output key.
func NewRun(policy, output string) *Run {
	return &Run{
		ID:        uuid.New(),
		Policy:    policy,
		Output:    output,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run as succeeded or failed.
func (r *Run) Finish(set DocumentSet, stats map[string]int, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Stats = stats
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusSucceeded
	r.Documents = len(set)
	r.Entities = set.EntityCount()
}

// SetStore persists encoded document sets under string keys.  Keys are file
// paths for the filesystem backend and object names for object storage.
type SetStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// RunRepository persists reconciliation runs and their resulting entities.
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run) error
	SaveDocuments(ctx context.Context, runID uuid.UUID, set DocumentSet) (int64, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

//Personal.AI order the ending
