package hermes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
)

// RunRequestEvent asks a serving instance to run the pipeline on Input.
// Params, when set, are laid over the configured run parameters; fields
// left out keep their configured values.
type RunRequestEvent struct {
	Input  pipeline.Input  `json:"input"`
	Params json.RawMessage `json:"params,omitempty"`
	Source string          `json:"source,omitempty"`
}

type RunCompletedEvent struct {
	RunID      string                          `json:"run_id"`
	Name       string                          `json:"name,omitempty"`
	Top        map[model.Scenario]model.Option `json:"top"`
	Exclusions int                             `json:"exclusions"`
	DurationMs int64                           `json:"duration_ms"`
	Timestamp  time.Time                       `json:"timestamp"`
}

type RunFailedEvent struct {
	RunID     string    `json:"run_id"`
	Name      string    `json:"name,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher announces finished runs. It is a pipeline.Sink.
type Publisher struct {
	Client Client
}

func (p Publisher) Save(_ context.Context, res *pipeline.Result) error {
	id := res.ID.String()
	return p.Client.Publish(SubjectRunCompleted(id), RunCompletedEvent{
		RunID:      id,
		Name:       res.Name,
		Top:        res.Top(),
		Exclusions: res.Exclusions,
		DurationMs: res.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}

// Failed announces a run that stopped with err.
func (p Publisher) Failed(runID, name string, err error) error {
	return p.Client.Publish(SubjectRunFailed(runID), RunFailedEvent{
		RunID:     runID,
		Name:      name,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}
