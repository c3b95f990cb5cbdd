// Package pipeline sequences scoring, weight derivation and ranking over one
// set of input tables and hands the result to the configured sinks.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Prioritizer/internal/ahp"
	"github.com/MikeSquared-Agency/Prioritizer/internal/metrics"
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/ranking"
	"github.com/MikeSquared-Agency/Prioritizer/internal/scoring"
)

// Params select the strategies a Pipeline applies.
type Params struct {
	Modes   ahp.Modes       `json:"modes"`
	AHP     ahp.Options     `json:"ahp"`
	Scoring scoring.Options `json:"scoring"`
	Ranking ranking.Options `json:"ranking"`
}

// DefaultParams rates every layer pairwise, scores onto [0, 1] and bins
// into red/yellow/green.
func DefaultParams() Params {
	return Params{
		Modes:   ahp.PairwiseModes(),
		AHP:     ahp.DefaultOptions(),
		Scoring: scoring.DefaultOptions(),
		Ranking: ranking.DefaultOptions(),
	}
}

// Overlay decodes data over a deep copy of p, so fields missing from data
// keep p's values. Empty or null data returns the copy unchanged.
func (p Params) Overlay(data []byte) (Params, error) {
	base, err := json.Marshal(p)
	if err != nil {
		return Params{}, fmt.Errorf("encode params: %w", err)
	}
	var out Params
	if err := json.Unmarshal(base, &out); err != nil {
		return Params{}, fmt.Errorf("copy params: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Params{}, model.ConfigErrorf("pipeline", "params", "%v", err)
	}
	return out, nil
}

// Input is the parsed set of tables for one run.
type Input struct {
	Name            string                   `json:"name,omitempty"`
	Options         []model.Option           `json:"options"`
	Scenarios       []model.Scenario         `json:"scenarios"`
	Characteristics []scoring.Characteristic `json:"characteristics"`
	Measurements    []model.Measurement      `json:"measurements"`
	Ratings         []ahp.RatingTable        `json:"ratings"`
}

// Result holds every view of one run.
type Result struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`

	Long            []ranking.Row       `json:"long"`
	Pivoted         ranking.Pivoted     `json:"pivoted"`
	SummedAndRanked []ranking.Ranked    `json:"summed_and_ranked"`
	Weights         []ahp.Weight        `json:"weights"`
	OverallWeights  []ahp.OverallWeight `json:"weights_overall"`
	Consistency     []ahp.Derivation    `json:"consistency"`
	Exclusions      int                 `json:"exclusions"`
	Params          Params              `json:"params"`
	StartedAt       time.Time           `json:"started_at"`
	Duration        time.Duration       `json:"duration"`
}

// Top returns the best ranked option of the overall view per scenario.
func (r *Result) Top() map[model.Scenario]model.Option {
	out := make(map[model.Scenario]model.Option)
	for _, rk := range r.SummedAndRanked {
		if rk.View == model.OverallView && rk.Rank == 1 {
			out[rk.Scenario] = rk.Option
		}
	}
	return out
}

// Sink receives a finished result, for example to persist or publish it.
type Sink interface {
	Save(ctx context.Context, res *Result) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, res *Result) error

func (f SinkFunc) Save(ctx context.Context, res *Result) error { return f(ctx, res) }

// Pipeline runs Scorer → PriorityWeighter → Aggregator/Ranker.
type Pipeline struct {
	params Params
	scorer *scoring.Scorer
	ranker *ranking.Ranker
	sinks  []Sink
	logger *slog.Logger
}

// New validates params and builds the stage components once.
func New(params Params, logger *slog.Logger, sinks ...Sink) (*Pipeline, error) {
	for layer, m := range map[string]ahp.Mode{
		"stakeholder":    params.Modes.Stakeholder,
		"group":          params.Modes.Group,
		"characteristic": params.Modes.Characteristic,
	} {
		if m != ahp.ModePairwise && m != ahp.ModeDirect {
			return nil, model.ConfigErrorf("pipeline", layer+"_rating_mode", "unknown rating mode %q", m)
		}
	}
	sc, err := scoring.NewScorer(params.Scoring, logger)
	if err != nil {
		return nil, err
	}
	rk, err := ranking.NewRanker(params.Ranking)
	if err != nil {
		return nil, err
	}
	return &Pipeline{params: params, scorer: sc, ranker: rk, sinks: sinks, logger: logger}, nil
}

// Params returns the resolved parameters.
func (p *Pipeline) Params() Params { return p.params }

// Run evaluates in. Sink failures do not discard the computed result: the
// result is returned together with the joined sink errors.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	res, err := p.compute(ctx, in)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		metrics.RunDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return nil, err
	}
	res.StartedAt = start
	res.Duration = time.Since(start)
	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDuration.WithLabelValues("completed").Observe(res.Duration.Seconds())
	metrics.ExcludedScores.Add(float64(res.Exclusions))

	p.logger.Info("run completed",
		"run_id", res.ID,
		"name", res.Name,
		"rows", len(res.Long),
		"exclusions", res.Exclusions,
		"duration", res.Duration,
	)

	var errs []error
	for _, s := range p.sinks {
		if err := s.Save(ctx, res); err != nil {
			name := fmt.Sprintf("%T", s)
			metrics.SinkErrors.WithLabelValues(name).Inc()
			p.logger.Error("result sink failed", "run_id", res.ID, "sink", name, "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", name, err))
		}
	}
	return res, errors.Join(errs...)
}

func (p *Pipeline) compute(ctx context.Context, in Input) (*Result, error) {
	values, err := in.index()
	if err != nil {
		return nil, err
	}

	scored, err := p.scorer.ScoreAll(in.Characteristics, in.Options, in.Scenarios, values)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := ahp.Build(in.Ratings, p.params.Modes, p.params.AHP)
	if err != nil {
		return nil, fmt.Errorf("derive weights: %w", err)
	}
	if err := h.Verify(1e-6); err != nil {
		return nil, fmt.Errorf("derive weights: %w", err)
	}
	for _, d := range h.Derivations {
		if d.LambdaMax > 0 {
			metrics.ConsistencyRatio.Observe(d.ConsistencyRatio)
		}
	}
	if err := p.checkCoverage(in, h); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := ranking.Join(scored, h)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	ranked, err := p.ranker.SummedAndRanked(rows)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	res := &Result{
		ID:              uuid.New(),
		Name:            in.Name,
		Long:            ranking.Long(rows),
		Pivoted:         ranking.Pivot(rows),
		SummedAndRanked: ranked,
		Weights:         h.Weights(),
		OverallWeights:  h.Overall(),
		Consistency:     h.Derivations,
		Params:          p.params,
	}
	for _, s := range scored {
		if s.Excluded {
			res.Exclusions++
		}
	}
	return res, nil
}

// checkCoverage requires every weighted characteristic to be scored and
// warns about scored characteristics no stakeholder weighs.
func (p *Pipeline) checkCoverage(in Input, h *ahp.Hierarchy) error {
	known := make(map[string]bool, len(in.Characteristics))
	for _, c := range in.Characteristics {
		known[c.Name] = true
	}
	weighted := make(map[string]bool)
	for _, name := range h.Characteristics() {
		weighted[name] = true
		if !known[name] {
			return model.DataErrorf("scoring", name, "characteristic is weighted but has no scoring row")
		}
	}
	for _, c := range in.Characteristics {
		if !weighted[c.Name] {
			p.logger.Warn("characteristic is scored but not weighted", "characteristic", c.Name)
		}
	}
	return nil
}
