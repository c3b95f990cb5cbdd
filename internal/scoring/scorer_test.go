package scoring

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScoreValueLinearMap(t *testing.T) {
	target := Range{Min: 1, Max: 10}
	limits := Limits{Low: 11, High: 20}

	tests := []struct {
		name    string
		raw     float64
		want    float64
		clipped bool
	}{
		{"between limits", 15, 5, false},
		{"above high filter", 22, 10, true},
		{"below low filter", 3, 1, true},
		{"at low filter", 11, 1, false},
		{"at high filter", 20, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ScoreValue(tt.raw, target, HigherIsBetter, limits, FilterClip)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(s.Value-tt.want) > 1e-9 {
				t.Errorf("got %f, want %f", s.Value, tt.want)
			}
			if s.Clipped != tt.clipped {
				t.Errorf("clipped=%v, want %v", s.Clipped, tt.clipped)
			}
		})
	}
}

func TestScoreValueLowerIsBetter(t *testing.T) {
	target := Range{Min: 0, Max: 100}
	limits := Limits{Low: 0, High: 50}

	cheap, err := ScoreValue(10, target, LowerIsBetter, limits, FilterClip)
	if err != nil {
		t.Fatal(err)
	}
	pricey, err := ScoreValue(40, target, LowerIsBetter, limits, FilterClip)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cheap.Value-80) > 1e-9 {
		t.Errorf("expected 80, got %f", cheap.Value)
	}
	if math.Abs(pricey.Value-20) > 1e-9 {
		t.Errorf("expected 20, got %f", pricey.Value)
	}
}

func TestScoreValueMonotonicAndBounded(t *testing.T) {
	target := Range{Min: 1, Max: 10}
	limits := Limits{Low: -5, High: 5}

	for _, dir := range []Direction{HigherIsBetter, LowerIsBetter} {
		prev := math.NaN()
		for raw := -10.0; raw <= 10.0; raw += 0.25 {
			s, err := ScoreValue(raw, target, dir, limits, FilterClip)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", dir, err)
			}
			if s.Value < target.Min || s.Value > target.Max {
				t.Fatalf("%s: score %f outside [%f, %f]", dir, s.Value, target.Min, target.Max)
			}
			if !math.IsNaN(prev) {
				if dir == HigherIsBetter && s.Value < prev {
					t.Fatalf("%s: score decreased at raw=%f", dir, raw)
				}
				if dir == LowerIsBetter && s.Value > prev {
					t.Fatalf("%s: score increased at raw=%f", dir, raw)
				}
			}
			prev = s.Value
		}
	}
}

func TestScoreValueExcludePolicy(t *testing.T) {
	s, err := ScoreValue(25, Range{Min: 0, Max: 1}, HigherIsBetter, Limits{Low: 0, High: 20}, FilterExclude)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Excluded {
		t.Fatal("expected out-of-filter value to be excluded")
	}
	if s.Reason != ReasonOutsideFilter {
		t.Errorf("unexpected reason %q", s.Reason)
	}
	if s.Value != 0 {
		t.Errorf("excluded score should carry no value, got %f", s.Value)
	}
}

func TestScoreValueZeroWidth(t *testing.T) {
	t.Run("target range", func(t *testing.T) {
		_, err := ScoreValue(1, Range{Min: 5, Max: 5}, HigherIsBetter, Limits{Low: 0, High: 1}, FilterClip)
		if !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
	t.Run("filter limits", func(t *testing.T) {
		_, err := ScoreValue(1, Range{Min: 0, Max: 1}, HigherIsBetter, Limits{Low: 3, High: 3}, FilterClip)
		if !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
}

// fixture mirrors the reference scoring table: four characteristics, two
// scenarios, three options, scores on [1, 10].
func fixture() ([]Characteristic, []model.Option, []model.Scenario, map[model.MeasurementKey]*float64) {
	chars := []Characteristic{
		{Name: "A Layer 0", Filter: ObservedFilter()},
		{Name: "B Layer 0", Filter: Filter{Low: ObservedMin(), High: Fixed(10)}, GlobalWeight: model.Float64Ptr(0.5)},
		{Name: "C Layer 0", Filter: Filter{Low: Fixed(5), High: Fixed(15)}},
		{Name: "D Layer 0", Filter: Filter{Low: Fixed(0), High: ObservedMax()}},
	}
	options := []model.Option{"Option 1", "Option 2", "Option 3"}
	scenarios := []model.Scenario{"Scenario A", "Scenario B"}
	raw := map[model.Scenario]map[string][]float64{
		"Scenario A": {
			"A Layer 0": {5, 10, 15},
			"B Layer 0": {6, 11, 8},
			"C Layer 0": {11.3, 3, 17},
			"D Layer 0": {-2, 1, 5},
		},
		"Scenario B": {
			"A Layer 0": {7, 15, 14},
			"B Layer 0": {8, 16, 7},
			"C Layer 0": {13.3, 8, 16},
			"D Layer 0": {0, 6, 4},
		},
	}
	values := make(map[model.MeasurementKey]*float64)
	for sc, byChar := range raw {
		for c, vals := range byChar {
			for i, v := range vals {
				values[model.MeasurementKey{Option: options[i], Characteristic: c, Scenario: sc}] = model.Float64Ptr(v)
			}
		}
	}
	return chars, options, scenarios, values
}

func TestScoreAllResolvesObservedLimits(t *testing.T) {
	chars, options, scenarios, values := fixture()
	s, err := NewScorer(Options{Range: Range{Min: 1, Max: 10}, FilterPolicy: FilterClip, MissingPolicy: MissingExclude, Decimals: -1}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := s.ScoreAll(chars, options, scenarios, values)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	if len(rows) != len(chars)*len(options)*len(scenarios) {
		t.Fatalf("expected %d rows, got %d", len(chars)*len(options)*len(scenarios), len(rows))
	}

	find := func(o model.Option, c string, sc model.Scenario) Scored {
		for _, r := range rows {
			if r.Option == o && r.Characteristic == c && r.Scenario == sc {
				return r
			}
		}
		t.Fatalf("row %s/%s/%s not found", o, c, sc)
		return Scored{}
	}

	// A Layer 0 scores between observed 5 and 15.
	if r := find("Option 2", "A Layer 0", "Scenario A"); math.Abs(r.Value-5.5) > 1e-9 {
		t.Errorf("expected 5.5, got %f", r.Value)
	}
	// B Layer 0: observed min 6, fixed high 10; 11 clips to 10, global weight halves the final.
	r := find("Option 2", "B Layer 0", "Scenario A")
	if r.Value != 10 || !r.Clipped {
		t.Errorf("expected clipped 10, got %+v", r.Score)
	}
	if r.Final != 5 {
		t.Errorf("expected final 5 after global weight, got %f", r.Final)
	}
	// D Layer 0: fixed low 0 clips -2 up to the bottom score.
	if r := find("Option 1", "D Layer 0", "Scenario A"); r.Value != 1 {
		t.Errorf("expected 1, got %f", r.Value)
	}
	for _, r := range rows {
		if r.Value < 1 || r.Value > 10 {
			t.Errorf("score %f out of range for %s/%s/%s", r.Value, r.Option, r.Characteristic, r.Scenario)
		}
	}
}

func TestScoreAllMissingMeasurement(t *testing.T) {
	chars, options, scenarios, values := fixture()
	delete(values, model.MeasurementKey{Option: "Option 3", Characteristic: "C Layer 0", Scenario: "Scenario B"})

	t.Run("exclude", func(t *testing.T) {
		s, _ := NewScorer(DefaultOptions(), discardLogger())
		rows, err := s.ScoreAll(chars, options, scenarios, values)
		if err != nil {
			t.Fatal(err)
		}
		var found bool
		for _, r := range rows {
			if r.Option == "Option 3" && r.Characteristic == "C Layer 0" && r.Scenario == "Scenario B" {
				found = true
				if !r.Excluded || r.Reason != ReasonMissing {
					t.Errorf("expected missing exclusion, got %+v", r.Score)
				}
				if r.Final != 0 || r.Raw != nil {
					t.Errorf("excluded row should carry no raw or final value")
				}
			}
		}
		if !found {
			t.Fatal("missing row not emitted")
		}
	})

	t.Run("error", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MissingPolicy = MissingError
		s, _ := NewScorer(opts, discardLogger())
		_, err := s.ScoreAll(chars, options, scenarios, values)
		if !errors.Is(err, model.ErrData) {
			t.Fatalf("expected data error, got %v", err)
		}
	})
}

func TestScoreAllRounding(t *testing.T) {
	chars, options, scenarios, values := fixture()
	s, _ := NewScorer(Options{Range: Range{Min: 1, Max: 10}, FilterPolicy: FilterClip, MissingPolicy: MissingExclude, Decimals: 0}, discardLogger())
	rows, err := s.ScoreAll(chars, options, scenarios, values)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Value != math.Round(r.Value) {
			t.Errorf("expected whole-number score, got %f", r.Value)
		}
	}
}

func TestNewScorerRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.FilterPolicy = "drop"
	if _, err := NewScorer(opts, discardLogger()); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseLimitAndDirection(t *testing.T) {
	l, err := ParseLimit(" Max ")
	if err != nil || l.Sentinel != SentinelMax {
		t.Errorf("expected max sentinel, got %+v (%v)", l, err)
	}
	l, err = ParseLimit("12.5")
	if err != nil || l.Value != 12.5 || l.Sentinel != "" {
		t.Errorf("expected 12.5, got %+v (%v)", l, err)
	}
	if _, err := ParseLimit("lots"); err == nil {
		t.Error("expected error for non-numeric limit")
	}
	for _, s := range []string{"NaN", "inf", "-Inf"} {
		if _, err := ParseLimit(s); err == nil {
			t.Errorf("expected error for non-finite limit %q", s)
		}
	}

	d, err := ParseDirection("lower")
	if err != nil || d != LowerIsBetter {
		t.Errorf("expected lower_is_better, got %s (%v)", d, err)
	}
	d, err = ParseDirection("")
	if err != nil || d != HigherIsBetter {
		t.Errorf("expected default higher_is_better, got %s (%v)", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestScoreAllRejectsNonFiniteValues(t *testing.T) {
	chars := []Characteristic{{Name: "cost", Filter: ObservedFilter()}}
	options := []model.Option{"a", "b", "c"}
	scenarios := []model.Scenario{"base"}
	s, _ := NewScorer(DefaultOptions(), discardLogger())

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		values := map[model.MeasurementKey]*float64{
			{Option: "a", Characteristic: "cost", Scenario: "base"}: model.Float64Ptr(bad),
			{Option: "b", Characteristic: "cost", Scenario: "base"}: model.Float64Ptr(1),
			{Option: "c", Characteristic: "cost", Scenario: "base"}: model.Float64Ptr(5),
		}
		rows, err := s.ScoreAll(chars, options, scenarios, values)
		if !errors.Is(err, model.ErrData) {
			t.Errorf("%g: expected data error, got %v with rows %+v", bad, err, rows)
		}
	}
}

func TestScoreAllGlobalWeight(t *testing.T) {
	options := []model.Option{"a"}
	scenarios := []model.Scenario{"base"}
	values := map[model.MeasurementKey]*float64{
		{Option: "a", Characteristic: "cost", Scenario: "base"}: model.Float64Ptr(5),
	}
	s, _ := NewScorer(DefaultOptions(), discardLogger())
	filter := Filter{Low: Fixed(0), High: Fixed(10)}

	tests := []struct {
		name   string
		weight *float64
		want   float64
	}{
		{"unset defaults to one", nil, 0.5},
		{"zero switches off", model.Float64Ptr(0), 0},
		{"half", model.Float64Ptr(0.5), 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chars := []Characteristic{{Name: "cost", Filter: filter, GlobalWeight: tt.weight}}
			rows, err := s.ScoreAll(chars, options, scenarios, values)
			if err != nil {
				t.Fatal(err)
			}
			if rows[0].Value != 0.5 {
				t.Errorf("expected score 0.5 before weighting, got %f", rows[0].Value)
			}
			if math.Abs(rows[0].Final-tt.want) > 1e-12 {
				t.Errorf("expected final %f, got %f", tt.want, rows[0].Final)
			}
		})
	}
}
