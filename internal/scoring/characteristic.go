package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Direction says whether higher raw values are better or worse.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// ParseDirection accepts the config and workbook spellings of a direction.
// An empty string means HigherIsBetter.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "higher_is_better", "higher", "max", "+":
		return HigherIsBetter, nil
	case "lower_is_better", "lower", "min", "-":
		return LowerIsBetter, nil
	default:
		return "", fmt.Errorf("unknown scoring direction %q", s)
	}
}

// FilterPolicy selects what happens to raw values outside the filter limits.
type FilterPolicy string

const (
	// FilterClip clips the value to the nearest filter limit.
	FilterClip FilterPolicy = "clip"
	// FilterExclude marks the score excluded for that option.
	FilterExclude FilterPolicy = "exclude"
)

// MissingPolicy selects what happens to a missing measurement.
type MissingPolicy string

const (
	MissingExclude MissingPolicy = "exclude"
	MissingError   MissingPolicy = "error"
)

// Range is the closed target score interval, e.g. [0, 1] or [1, 10].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate rejects zero-width and inverted target ranges.
func (r Range) Validate() error {
	if r.Max == r.Min {
		return model.ConfigErrorf("scoring", "score range", "zero-width score range [%g, %g]", r.Min, r.Max)
	}
	if r.Max < r.Min {
		return model.ConfigErrorf("scoring", "score range", "max score %g below min score %g", r.Max, r.Min)
	}
	return nil
}

// Limit is a filter bound: either a number or one of the sentinels "min"
// and "max", which resolve to the observed extreme of the characteristic
// over all options and scenarios.
type Limit struct {
	Value    float64
	Sentinel string
}

const (
	SentinelMin = "min"
	SentinelMax = "max"
)

// Fixed returns a numeric limit.
func Fixed(v float64) Limit { return Limit{Value: v} }

// ObservedMin returns the "min" sentinel limit.
func ObservedMin() Limit { return Limit{Sentinel: SentinelMin} }

// ObservedMax returns the "max" sentinel limit.
func ObservedMax() Limit { return Limit{Sentinel: SentinelMax} }

// ParseLimit reads a workbook cell: a number, "min" or "max".
func ParseLimit(s string) (Limit, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case SentinelMin:
		return ObservedMin(), nil
	case SentinelMax:
		return ObservedMax(), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Limit{}, fmt.Errorf("filter limit %q is neither a number nor min/max", s)
	}
	return Fixed(f), nil
}

func (l Limit) String() string {
	if l.Sentinel != "" {
		return l.Sentinel
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

// MarshalJSON writes a sentinel as a string and a fixed limit as a number.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Sentinel != "" {
		return json.Marshal(l.Sentinel)
	}
	return json.Marshal(l.Value)
}

// UnmarshalJSON accepts a number, "min", "max" or a numeric string.
func (l *Limit) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*l = Fixed(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("filter limit must be a number or a string: %w", err)
	}
	parsed, err := ParseLimit(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Filter holds the low and high filter limits of a characteristic.
type Filter struct {
	Low  Limit `json:"low"`
	High Limit `json:"high"`
}

// ObservedFilter scores between the observed min and max.
func ObservedFilter() Filter {
	return Filter{Low: ObservedMin(), High: ObservedMax()}
}

// Characteristic describes how one measurable attribute is scored.
type Characteristic struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction,omitempty"`
	Filter    Filter    `json:"filter"`
	// ScenarioFilters overrides Filter for individual scenarios.
	ScenarioFilters map[model.Scenario]Filter `json:"scenario_filters,omitempty"`
	// GlobalWeight amplifies or attenuates the characteristic's scores.
	// Nil means 1; zero switches the characteristic off.
	GlobalWeight *float64 `json:"global_weight,omitempty"`
}

// FilterFor returns the filter in effect for a scenario.
func (c Characteristic) FilterFor(sc model.Scenario) Filter {
	if f, ok := c.ScenarioFilters[sc]; ok {
		return f
	}
	return c.Filter
}

func (c Characteristic) globalWeight() float64 {
	if c.GlobalWeight == nil {
		return 1
	}
	return *c.GlobalWeight
}
