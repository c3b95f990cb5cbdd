// Package ranking combines scores with composed weights, ranks options per
// scenario and view, assigns bins and projects the result views.
package ranking

import (
	"github.com/MikeSquared-Agency/Prioritizer/internal/ahp"
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/scoring"
)

// Row is one record of the canonical result table, keyed by
// (Option, View, Characteristic, Scenario). View is a stakeholder name or
// model.OverallView. Group is empty in the overall view.
type Row struct {
	Option         model.Option   `json:"option"`
	View           string         `json:"view"`
	Group          string         `json:"group,omitempty"`
	Characteristic string         `json:"characteristic"`
	Scenario       model.Scenario `json:"scenario"`

	Raw      *float64 `json:"raw"`
	Score    float64  `json:"score"`
	Final    float64  `json:"final"`
	Excluded bool     `json:"excluded,omitempty"`
	Reason   string   `json:"reason,omitempty"`

	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// Overall reports whether the row belongs to the stakeholder-weighted view.
func (r Row) Overall() bool { return r.View == model.OverallView }

type scoreKey struct {
	option         model.Option
	characteristic string
	scenario       model.Scenario
}

// Join builds the canonical table: one row per scored measurement and
// stakeholder path, followed by the overall rows. Every weighted
// characteristic must have been scored.
func Join(scored []scoring.Scored, h *ahp.Hierarchy) ([]Row, error) {
	index := make(map[scoreKey]scoring.Scored, len(scored))
	var options []model.Option
	var scenarios []model.Scenario
	seenOption := make(map[model.Option]bool)
	seenScenario := make(map[model.Scenario]bool)
	for _, s := range scored {
		index[scoreKey{s.Option, s.Characteristic, s.Scenario}] = s
		if !seenOption[s.Option] {
			seenOption[s.Option] = true
			options = append(options, s.Option)
		}
		if !seenScenario[s.Scenario] {
			seenScenario[s.Scenario] = true
			scenarios = append(scenarios, s.Scenario)
		}
	}

	weights := h.Weights()
	overall := h.Overall()
	rows := make([]Row, 0, len(scenarios)*len(options)*(len(weights)+len(overall)))

	build := func(view, group, char string, w float64, sc model.Scenario, o model.Option) (Row, error) {
		s, ok := index[scoreKey{o, char, sc}]
		if !ok {
			return Row{}, model.DataErrorf("scoring", char, "characteristic is weighted but has no score for %s/%s", o, sc)
		}
		r := Row{
			Option:         o,
			View:           view,
			Group:          group,
			Characteristic: char,
			Scenario:       sc,
			Raw:            s.Raw,
			Score:          s.Value,
			Final:          s.Final,
			Excluded:       s.Excluded,
			Reason:         s.Reason,
			Weight:         w,
		}
		if !r.Excluded {
			r.Weighted = r.Final * w
		}
		return r, nil
	}

	for _, sc := range scenarios {
		for _, w := range weights {
			for _, o := range options {
				r, err := build(w.Stakeholder, w.Group, w.Characteristic, w.PerStakeholder, sc, o)
				if err != nil {
					return nil, err
				}
				rows = append(rows, r)
			}
		}
		for _, w := range overall {
			for _, o := range options {
				r, err := build(model.OverallView, "", w.Characteristic, w.Weight, sc, o)
				if err != nil {
					return nil, err
				}
				rows = append(rows, r)
			}
		}
	}
	return rows, nil
}
