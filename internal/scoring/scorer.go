package scoring

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Options configure a Scorer. They are resolved once per run.
type Options struct {
	Range         Range         `json:"score_range" yaml:"score_range"`
	FilterPolicy  FilterPolicy  `json:"filter_policy" yaml:"filter_policy"`
	MissingPolicy MissingPolicy `json:"missing_policy" yaml:"missing_policy"`
	// Decimals rounds scores to this many decimal places; -1 disables rounding.
	Decimals int `json:"decimals_in_scores" yaml:"decimals_in_scores"`
}

// DefaultOptions scores onto [0, 1], clips out-of-filter values and
// excludes missing measurements.
func DefaultOptions() Options {
	return Options{
		Range:         Range{Min: 0, Max: 1},
		FilterPolicy:  FilterClip,
		MissingPolicy: MissingExclude,
		Decimals:      -1,
	}
}

// Validate checks the target range and policy selectors.
func (o Options) Validate() error {
	if err := o.Range.Validate(); err != nil {
		return err
	}
	switch o.FilterPolicy {
	case FilterClip, FilterExclude:
	default:
		return model.ConfigErrorf("scoring", "filter_policy", "unknown filter policy %q", o.FilterPolicy)
	}
	switch o.MissingPolicy {
	case MissingExclude, MissingError:
	default:
		return model.ConfigErrorf("scoring", "missing_policy", "unknown missing policy %q", o.MissingPolicy)
	}
	return nil
}

// Scored is the scoring output for one (Option, Characteristic, Scenario).
type Scored struct {
	Option         model.Option   `json:"option"`
	Characteristic string         `json:"characteristic"`
	Scenario       model.Scenario `json:"scenario"`
	Raw            *float64       `json:"raw"`
	Score
	GlobalWeight float64 `json:"global_weight"`
	// Final is Value × GlobalWeight, the amount carried into aggregation.
	Final float64 `json:"final"`
}

// Scorer maps raw measurements onto comparable scores.
type Scorer struct {
	opts   Options
	logger *slog.Logger
}

// NewScorer creates a Scorer after validating opts.
func NewScorer(opts Options, logger *slog.Logger) (*Scorer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{opts: opts, logger: logger}, nil
}

// Options returns the scorer's resolved options.
func (s *Scorer) Options() Options { return s.opts }

// ScoreAll scores every (Option, Characteristic, Scenario) triple. Output
// order is scenario, characteristic, option in input order. Each element is
// independent of the others apart from min/max filter resolution, which
// looks at all values of its characteristic.
func (s *Scorer) ScoreAll(
	chars []Characteristic,
	options []model.Option,
	scenarios []model.Scenario,
	values map[model.MeasurementKey]*float64,
) ([]Scored, error) {
	extremes := make(map[string]Extremes, len(chars))
	for _, c := range chars {
		var present []float64
		for _, sc := range scenarios {
			for _, o := range options {
				v := values[model.MeasurementKey{Option: o, Characteristic: c.Name, Scenario: sc}]
				if v == nil {
					continue
				}
				if math.IsNaN(*v) || math.IsInf(*v, 0) {
					return nil, model.DataErrorf("measurements", fmt.Sprintf("%s/%s/%s", o, c.Name, sc), "value %g is not finite", *v)
				}
				present = append(present, *v)
			}
		}
		ext, err := ObserveExtremes(present)
		if err != nil {
			return nil, fmt.Errorf("observe %s: %w", c.Name, err)
		}
		extremes[c.Name] = ext
	}

	out := make([]Scored, 0, len(chars)*len(options)*len(scenarios))
	excluded := 0
	for _, sc := range scenarios {
		for _, c := range chars {
			subject := fmt.Sprintf("%s/%s", c.Name, sc)
			limits, err := c.FilterFor(sc).Resolve(extremes[c.Name], subject)
			if err != nil {
				return nil, err
			}
			for _, o := range options {
				key := model.MeasurementKey{Option: o, Characteristic: c.Name, Scenario: sc}
				row := Scored{
					Option:         o,
					Characteristic: c.Name,
					Scenario:       sc,
					Raw:            values[key],
					GlobalWeight:   c.globalWeight(),
				}
				row.Score, err = s.scoreOne(row.Raw, c.Direction, limits, fmt.Sprintf("%s/%s", o, subject))
				if err != nil {
					return nil, err
				}
				if row.Excluded {
					excluded++
				} else {
					row.Final = row.Value * row.GlobalWeight
				}
				out = append(out, row)
			}
		}
	}

	if excluded > 0 {
		s.logger.Warn("scores excluded", "count", excluded, "total", len(out))
	}
	s.logger.Debug("scored measurements", "rows", len(out), "characteristics", len(chars), "scenarios", len(scenarios))
	return out, nil
}

func (s *Scorer) scoreOne(raw *float64, dir Direction, limits Limits, subject string) (Score, error) {
	if raw == nil {
		if s.opts.MissingPolicy == MissingError {
			return Score{}, model.DataErrorf("scoring", subject, "required measurement is missing")
		}
		return Excluded(ReasonMissing), nil
	}
	sc, err := ScoreValue(*raw, s.opts.Range, dir, limits, s.opts.FilterPolicy)
	if err != nil {
		return Score{}, err
	}
	if !sc.Excluded {
		sc.Value = clamp(roundTo(sc.Value, s.opts.Decimals), s.opts.Range.Min, s.opts.Range.Max)
	}
	return sc, nil
}
