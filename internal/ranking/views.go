package ranking

import (
	"sort"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// View names of the projections.
const (
	ViewLong            = "long"
	ViewPivoted         = "pivoted"
	ViewSummedAndRanked = "summed_and_ranked"
	ViewBins            = "bins"
)

// BinRange is the bin range one scenario's stakeholder or overall totals
// were labelled against.
type BinRange struct {
	Scenario model.Scenario `json:"scenario"`
	Overall  bool           `json:"overall"`
	Edges
}

// BinRanges recomputes the ranges behind the Bin labels of ranked, in
// scenario order with the stakeholder range first.
func (r *Ranker) BinRanges(ranked []Ranked) ([]BinRange, error) {
	var scenarios []model.Scenario
	seen := make(map[model.Scenario][2]bool)
	for _, rk := range ranked {
		if rk.Excluded {
			continue
		}
		has, ok := seen[rk.Scenario]
		if !ok {
			scenarios = append(scenarios, rk.Scenario)
		}
		if rk.View == model.OverallView {
			has[1] = true
		} else {
			has[0] = true
		}
		seen[rk.Scenario] = has
	}
	var out []BinRange
	for _, sc := range scenarios {
		for i, overall := range []bool{false, true} {
			if !seen[sc][i] {
				continue
			}
			e, err := r.Edges(ranked, sc, overall)
			if err != nil {
				return nil, err
			}
			out = append(out, BinRange{Scenario: sc, Overall: overall, Edges: e})
		}
	}
	return out, nil
}

// Long returns the canonical rows grouped by scenario then view, keeping
// input order within each group.
func Long(rows []Row) []Row {
	out := append([]Row(nil), rows...)
	scenarioOrder := firstSeen(rows, func(r Row) string { return string(r.Scenario) })
	viewOrder := firstSeen(rows, func(r Row) string { return r.View })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Scenario != b.Scenario {
			return scenarioOrder[string(a.Scenario)] < scenarioOrder[string(b.Scenario)]
		}
		if a.View != b.View {
			return viewOrder[a.View] < viewOrder[b.View]
		}
		return false
	})
	return out
}

// PivotRow is one (View, Scenario, Option) line of the pivoted view.
// Values align with Pivoted.Characteristics; nil marks an excluded or
// unweighted cell.
type PivotRow struct {
	View     string         `json:"view"`
	Scenario model.Scenario `json:"scenario"`
	Option   model.Option   `json:"option"`
	Values   []*float64     `json:"values"`
}

// Pivoted is the Option × Characteristic matrix of weighted scores per
// View and Scenario.
type Pivoted struct {
	Characteristics []string   `json:"characteristics"`
	Rows            []PivotRow `json:"rows"`
}

// Pivot projects rows into the pivoted view.
func Pivot(rows []Row) Pivoted {
	charIdx := make(map[string]int)
	var chars []string
	for _, r := range rows {
		if _, ok := charIdx[r.Characteristic]; !ok {
			charIdx[r.Characteristic] = len(chars)
			chars = append(chars, r.Characteristic)
		}
	}

	type key struct {
		view     string
		scenario model.Scenario
		option   model.Option
	}
	lineIdx := make(map[key]int)
	var lines []PivotRow
	for _, r := range Long(rows) {
		k := key{r.View, r.Scenario, r.Option}
		i, ok := lineIdx[k]
		if !ok {
			i = len(lines)
			lineIdx[k] = i
			lines = append(lines, PivotRow{View: r.View, Scenario: r.Scenario, Option: r.Option, Values: make([]*float64, len(chars))})
		}
		if r.Excluded {
			continue
		}
		v := r.Weighted
		lines[i].Values[charIdx[r.Characteristic]] = &v
	}
	return Pivoted{Characteristics: chars, Rows: lines}
}

// SummedAndRanked projects rows into the summed and ranked view.
func (r *Ranker) SummedAndRanked(rows []Row) ([]Ranked, error) {
	return r.Aggregate(rows)
}

func firstSeen(rows []Row, key func(Row) string) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		k := key(r)
		if _, ok := out[k]; !ok {
			out[k] = len(out)
		}
	}
	return out
}
