package ranking

import "github.com/MikeSquared-Agency/Prioritizer/internal/model"

// ViewFrontier names the non-dominated projection.
const ViewFrontier = "frontier"

// Frontier returns the pivoted lines that no other option of the same View
// and Scenario dominates. Excluded cells count as zero, the same as in the
// summed total. Input order is kept.
func Frontier(p Pivoted) []PivotRow {
	type key struct {
		view     string
		scenario model.Scenario
	}
	groups := make(map[key][]int)
	for i, r := range p.Rows {
		k := key{r.View, r.Scenario}
		groups[k] = append(groups[k], i)
	}

	var out []PivotRow
	for i, r := range p.Rows {
		dominated := false
		for _, j := range groups[key{r.View, r.Scenario}] {
			if i != j && dominates(p.Rows[j].Values, r.Values) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, r)
		}
	}
	return out
}

// dominates reports whether a is at least as good as b on every
// characteristic and strictly better on one.
func dominates(a, b []*float64) bool {
	better := false
	for i := range a {
		x, y := cell(a[i]), cell(b[i])
		if x < y {
			return false
		}
		if x > y {
			better = true
		}
	}
	return better
}

func cell(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
