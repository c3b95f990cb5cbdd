package scoring

import (
	"github.com/montanaflynn/stats"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Extremes are the observed minimum and maximum raw values of one
// characteristic across all options and scenarios.
type Extremes struct {
	Min   float64
	Max   float64
	Valid bool
}

// ObserveExtremes computes Extremes from the present values. Valid is false
// when no value is present.
func ObserveExtremes(values []float64) (Extremes, error) {
	if len(values) == 0 {
		return Extremes{}, nil
	}
	min, err := stats.Min(values)
	if err != nil {
		return Extremes{}, err
	}
	max, err := stats.Max(values)
	if err != nil {
		return Extremes{}, err
	}
	return Extremes{Min: min, Max: max, Valid: true}, nil
}

// Resolve replaces min/max sentinels in f with the observed extremes.
func (f Filter) Resolve(ext Extremes, subject string) (Limits, error) {
	low, err := resolveLimit(f.Low, ext, subject)
	if err != nil {
		return Limits{}, err
	}
	high, err := resolveLimit(f.High, ext, subject)
	if err != nil {
		return Limits{}, err
	}
	limits := Limits{Low: low, High: high}
	if err := limits.Validate(subject); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

func resolveLimit(l Limit, ext Extremes, subject string) (float64, error) {
	switch l.Sentinel {
	case "":
		return l.Value, nil
	case SentinelMin, SentinelMax:
		if !ext.Valid {
			return 0, model.DataErrorf("scoring", subject, "%s filter needs at least one measurement", l.Sentinel)
		}
		if l.Sentinel == SentinelMin {
			return ext.Min, nil
		}
		return ext.Max, nil
	default:
		return 0, model.ConfigErrorf("scoring", subject, "unknown filter sentinel %q", l.Sentinel)
	}
}
