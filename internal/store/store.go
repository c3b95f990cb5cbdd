package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
)

type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is a persisted pipeline run. Result is nil for failed runs and in
// list responses.
type Run struct {
	ID         uuid.UUID                       `json:"run_id"`
	Name       string                          `json:"name,omitempty"`
	Status     RunStatus                       `json:"status"`
	Error      string                          `json:"error,omitempty"`
	Exclusions int                             `json:"exclusions"`
	Top        map[model.Scenario]model.Option `json:"top,omitempty"`
	CreatedAt  time.Time                       `json:"created_at"`
	DurationMs int64                           `json:"duration_ms"`

	Result *pipeline.Result `json:"result,omitempty"`
}

// FromResult builds a completed run record.
func FromResult(res *pipeline.Result) *Run {
	return &Run{
		ID:         res.ID,
		Name:       res.Name,
		Status:     StatusCompleted,
		Exclusions: res.Exclusions,
		Top:        res.Top(),
		CreatedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		Result:     res,
	}
}

// FailedRun records a run that stopped with err.
func FailedRun(name string, err error) *Run {
	return &Run{
		ID:        uuid.New(),
		Name:      name,
		Status:    StatusFailed,
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}

type RunFilter struct {
	Status *RunStatus
	Name   string
	Limit  int
	Offset int
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store persists runs. GetRun returns nil, nil for an unknown id.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	Close() error
}

// Sink persists every finished pipeline result.
type Sink struct {
	Store Store
}

func (s Sink) Save(ctx context.Context, res *pipeline.Result) error {
	return s.Store.SaveRun(ctx, FromResult(res))
}
