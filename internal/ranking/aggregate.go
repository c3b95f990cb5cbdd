package ranking

import (
	"sort"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Options configure a Ranker. They are resolved once per run.
type Options struct {
	// Renormalize rescales a total by the share of weight that was actually
	// scored, so options missing data are not penalized for it.
	Renormalize bool `json:"renormalize" yaml:"renormalize"`
	Bins        Bins `json:"bins" yaml:"bins"`
}

// DefaultOptions renormalizes over excluded scores with the default bins.
func DefaultOptions() Options {
	return Options{Renormalize: true, Bins: DefaultBins()}
}

// Ranked is one option's total, rank and bin within a (Scenario, View).
type Ranked struct {
	Option   model.Option   `json:"option"`
	View     string         `json:"view"`
	Scenario model.Scenario `json:"scenario"`
	Total    float64        `json:"total"`
	// Rank is 1 for the best option; 0 when Excluded.
	Rank int    `json:"rank"`
	Bin  string `json:"bin,omitempty"`
	// Coverage is the share of the view's weight that was scored.
	Coverage float64 `json:"coverage"`
	Excluded bool    `json:"excluded,omitempty"`
}

// Ranker aggregates canonical rows into ranked totals.
type Ranker struct {
	opts Options
}

// NewRanker validates the bin configuration and returns a Ranker.
func NewRanker(opts Options) (*Ranker, error) {
	if err := opts.Bins.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{opts: opts}, nil
}

// Options returns the ranker's resolved options.
func (r *Ranker) Options() Options { return r.opts }

type groupKey struct {
	scenario model.Scenario
	view     string
}

type binScope struct {
	scenario model.Scenario
	overall  bool
}

type accum struct {
	total, included, all float64
}

// Aggregate sums weighted scores per (Scenario, View, Option), ranks the
// options of each (Scenario, View) and assigns bins. Groups keep the order
// in which they first appear in rows; ties keep option input order.
// Options whose every score is excluded are listed last without rank or bin.
func (r *Ranker) Aggregate(rows []Row) ([]Ranked, error) {
	var groups []groupKey
	options := make(map[groupKey][]model.Option)
	sums := make(map[groupKey]map[model.Option]*accum)

	for _, row := range rows {
		k := groupKey{row.Scenario, row.View}
		bucket, ok := sums[k]
		if !ok {
			bucket = make(map[model.Option]*accum)
			sums[k] = bucket
			groups = append(groups, k)
		}
		a, ok := bucket[row.Option]
		if !ok {
			a = &accum{}
			bucket[row.Option] = a
			options[k] = append(options[k], row.Option)
		}
		a.all += row.Weight
		if row.Excluded {
			continue
		}
		a.included += row.Weight
		a.total += row.Weighted
	}

	var out []Ranked
	scopeTotals := make(map[binScope][]float64)
	for _, k := range groups {
		ranked := make([]Ranked, 0, len(options[k]))
		for _, o := range options[k] {
			a := sums[k][o]
			res := Ranked{Option: o, View: k.view, Scenario: k.scenario}
			if a.all > 0 {
				res.Coverage = a.included / a.all
			}
			switch {
			case a.included == 0 && a.all > 0:
				res.Excluded = true
			case r.opts.Renormalize && a.included > 0:
				res.Total = a.total / a.included * a.all
			default:
				res.Total = a.total
			}
			ranked = append(ranked, res)
		}

		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Excluded != ranked[j].Excluded {
				return !ranked[i].Excluded
			}
			return ranked[i].Total > ranked[j].Total
		})
		scope := binScope{k.scenario, k.view == model.OverallView}
		for i := range ranked {
			if ranked[i].Excluded {
				continue
			}
			ranked[i].Rank = i + 1
			scopeTotals[scope] = append(scopeTotals[scope], ranked[i].Total)
		}
		out = append(out, ranked...)
	}

	edges := make(map[binScope]Edges, len(scopeTotals))
	for scope, totals := range scopeTotals {
		e, err := r.opts.Bins.edges(totals)
		if err != nil {
			return nil, err
		}
		edges[scope] = e
	}
	for i := range out {
		if out[i].Excluded {
			continue
		}
		scope := binScope{out[i].Scenario, out[i].View == model.OverallView}
		out[i].Bin = r.opts.Bins.Label(edges[scope], out[i].Total)
	}
	return out, nil
}

// Edges recomputes the bin edges Aggregate used for one scenario, either
// for the overall view or for the stakeholder views.
func (r *Ranker) Edges(ranked []Ranked, scenario model.Scenario, overall bool) (Edges, error) {
	var totals []float64
	for _, rk := range ranked {
		if rk.Excluded || rk.Scenario != scenario || (rk.View == model.OverallView) != overall {
			continue
		}
		totals = append(totals, rk.Total)
	}
	return r.opts.Bins.edges(totals)
}
