// Package ahp derives priority weights with the Analytic Hierarchy Process
// (Saaty) and composes them across the stakeholder, group and
// characteristic layers.
package ahp

import (
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Matrix is a square pairwise rating matrix. Values[i][j] rates Labels[i]
// relative to Labels[j] on the Saaty 1–9 scale. Zero or NaN entries below
// the diagonal are treated as blank and filled with reciprocals.
type Matrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// Size returns the matrix order.
func (m Matrix) Size() int { return len(m.Labels) }

func blank(v float64) bool { return v == 0 || math.IsNaN(v) }

// Complete validates m and returns a copy with the lower triangle filled.
// Present entries must be positive, the diagonal must be 1 and every pair
// must be reciprocal within tol.
func (m Matrix) Complete(node string, tol float64) (Matrix, error) {
	n := len(m.Labels)
	if n == 0 {
		return Matrix{}, model.ConfigErrorf("ahp", node, "rating matrix has no entries")
	}
	if len(m.Values) != n {
		return Matrix{}, model.ConfigErrorf("ahp", node, "rating matrix has %d rows for %d labels", len(m.Values), n)
	}
	seen := make(map[string]bool, n)
	for _, l := range m.Labels {
		if seen[l] {
			return Matrix{}, model.ConfigErrorf("ahp", node, "duplicate label %q", l)
		}
		seen[l] = true
	}

	out := Matrix{Labels: append([]string(nil), m.Labels...), Values: make([][]float64, n)}
	for i, row := range m.Values {
		if len(row) != n {
			return Matrix{}, model.ConfigErrorf("ahp", node, "row %q has %d columns, want %d (matrix must be square)", m.Labels[i], len(row), n)
		}
		out.Values[i] = append([]float64(nil), row...)
	}

	for i := 0; i < n; i++ {
		if out.Values[i][i] != 1 {
			return Matrix{}, model.ConfigErrorf("ahp", node, "diagonal entry %q is %g, want 1", m.Labels[i], out.Values[i][i])
		}
		for j := i + 1; j < n; j++ {
			upper, lower := out.Values[i][j], out.Values[j][i]
			switch {
			case blank(upper) && blank(lower):
				return Matrix{}, model.ConfigErrorf("ahp", node, "no rating between %q and %q", m.Labels[i], m.Labels[j])
			case blank(upper):
				if lower < 0 {
					return Matrix{}, model.ConfigErrorf("ahp", node, "negative rating %g", lower)
				}
				out.Values[i][j] = 1 / lower
			case blank(lower):
				if upper < 0 {
					return Matrix{}, model.ConfigErrorf("ahp", node, "negative rating %g", upper)
				}
				out.Values[j][i] = 1 / upper
			default:
				if upper < 0 || lower < 0 {
					return Matrix{}, model.ConfigErrorf("ahp", node, "negative rating between %q and %q", m.Labels[i], m.Labels[j])
				}
				if math.Abs(upper*lower-1) > tol {
					return Matrix{}, model.ConfigErrorf("ahp", node,
						"ratings %q/%q=%g and %q/%q=%g are not reciprocal", m.Labels[i], m.Labels[j], upper, m.Labels[j], m.Labels[i], lower)
				}
			}
		}
	}
	return out, nil
}

func (m Matrix) String() string {
	return fmt.Sprintf("%d×%d %v", len(m.Labels), len(m.Labels), m.Labels)
}
