package pipeline

import (
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// index validates the input tables and returns the measurements keyed by
// (Option, Characteristic, Scenario).
func (in Input) index() (map[model.MeasurementKey]*float64, error) {
	if len(in.Options) == 0 {
		return nil, model.DataErrorf("scoring", "", "no options")
	}
	if len(in.Scenarios) == 0 {
		return nil, model.DataErrorf("scoring", "", "no scenarios")
	}
	if len(in.Characteristics) == 0 {
		return nil, model.DataErrorf("scoring", "", "no characteristics")
	}

	options := make(map[model.Option]bool, len(in.Options))
	for _, o := range in.Options {
		if options[o] {
			return nil, model.DataErrorf("scoring", string(o), "duplicate option")
		}
		options[o] = true
	}
	scenarios := make(map[model.Scenario]bool, len(in.Scenarios))
	for _, s := range in.Scenarios {
		if scenarios[s] {
			return nil, model.DataErrorf("scoring", string(s), "duplicate scenario")
		}
		scenarios[s] = true
	}
	chars := make(map[string]bool, len(in.Characteristics))
	for _, c := range in.Characteristics {
		if chars[c.Name] {
			return nil, model.DataErrorf("scoring", c.Name, "duplicate characteristic")
		}
		chars[c.Name] = true
	}

	values := make(map[model.MeasurementKey]*float64, len(in.Measurements))
	for _, m := range in.Measurements {
		switch {
		case !options[m.Option]:
			return nil, model.DataErrorf("scoring", string(m.Option), "measurement for unknown option")
		case !chars[m.Characteristic]:
			return nil, model.DataErrorf("scoring", m.Characteristic, "measurement for unknown characteristic")
		case !scenarios[m.Scenario]:
			return nil, model.DataErrorf("scoring", string(m.Scenario), "measurement for unknown scenario")
		}
		k := m.Key()
		if _, dup := values[k]; dup {
			return nil, model.DataErrorf("scoring", string(m.Option)+"/"+m.Characteristic+"/"+string(m.Scenario), "duplicate measurement")
		}
		values[k] = m.Value
	}
	return values, nil
}
