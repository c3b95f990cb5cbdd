package model

// Option is one alternative under evaluation. Options keep the order in
// which they were read; that order is the ranking tie-breaker.
type Option string

// Scenario names one variant of the raw measurement data.
type Scenario string

// Layer identifies a level of the priority hierarchy.
type Layer int

const (
	LayerCharacteristic Layer = 0
	LayerGroup          Layer = 1
	LayerStakeholder    Layer = 2
)

func (l Layer) String() string {
	switch l {
	case LayerCharacteristic:
		return "characteristic"
	case LayerGroup:
		return "group"
	case LayerStakeholder:
		return "stakeholder"
	default:
		return "unknown"
	}
}

// OverallView is the view name used for the stakeholder-weighted combination.
const OverallView = "Overall"

// Measurement is a raw value for one (Option, Characteristic, Scenario).
// A nil Value means the measurement is missing.
type Measurement struct {
	Option         Option   `json:"option"`
	Characteristic string   `json:"characteristic"`
	Scenario       Scenario `json:"scenario"`
	Value          *float64 `json:"value"`
}

// MeasurementKey indexes a measurement table.
type MeasurementKey struct {
	Option         Option
	Characteristic string
	Scenario       Scenario
}

// Key returns the index key of m.
func (m Measurement) Key() MeasurementKey {
	return MeasurementKey{Option: m.Option, Characteristic: m.Characteristic, Scenario: m.Scenario}
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
