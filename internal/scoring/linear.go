package scoring

import (
	"math"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Exclusion reasons carried on excluded scores.
const (
	ReasonMissing       = "missing measurement"
	ReasonOutsideFilter = "outside filter limits"
)

// Score is a normalized value for one (Option, Characteristic, Scenario).
// An excluded score carries no value and must not be summed.
type Score struct {
	Value    float64 `json:"value"`
	Excluded bool    `json:"excluded"`
	Clipped  bool    `json:"clipped,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Excluded returns an excluded score with the given reason.
func Excluded(reason string) Score {
	return Score{Excluded: true, Reason: reason}
}

// Limits are resolved numeric filter limits.
type Limits struct {
	Low  float64
	High float64
}

// Validate rejects zero-width and inverted limits.
func (l Limits) Validate(subject string) error {
	if l.High == l.Low {
		return model.ConfigErrorf("scoring", subject, "zero-width filter limits [%g, %g]", l.Low, l.High)
	}
	if l.High < l.Low {
		return model.ConfigErrorf("scoring", subject, "high filter %g below low filter %g", l.High, l.Low)
	}
	return nil
}

// ScoreValue linearly maps raw from the filter limits onto the target
// range. With LowerIsBetter the mapping is inverted. Values outside the
// limits are clipped or excluded depending on policy.
func ScoreValue(raw float64, target Range, dir Direction, limits Limits, policy FilterPolicy) (Score, error) {
	if err := target.Validate(); err != nil {
		return Score{}, err
	}
	if err := limits.Validate(""); err != nil {
		return Score{}, err
	}
	if math.IsNaN(raw) {
		return Excluded(ReasonMissing), nil
	}

	v := raw
	clipped := false
	if v < limits.Low || v > limits.High {
		if policy == FilterExclude {
			return Excluded(ReasonOutsideFilter), nil
		}
		v = clamp(v, limits.Low, limits.High)
		clipped = true
	}

	frac := (v - limits.Low) / (limits.High - limits.Low)
	if dir == LowerIsBetter {
		frac = 1 - frac
	}
	value := target.Min + (target.Max-target.Min)*frac
	return Score{Value: clamp(value, target.Min, target.Max), Clipped: clipped}, nil
}

// roundTo rounds v to the given number of decimals. Negative decimals
// leave v untouched.
func roundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
