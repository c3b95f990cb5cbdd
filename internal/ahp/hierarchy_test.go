package ahp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

func pair(a, b string, v float64) Ratings {
	return Ratings{Labels: []string{a, b}, Matrix: [][]float64{{1, v}, {0, 1}}}
}

// twoStakeholderTables is a two-stakeholder hierarchy where each stakeholder
// rates the same four characteristics under different groups.
func twoStakeholderTables() []RatingTable {
	return []RatingTable{
		{Name: "layer_2", Layer: model.LayerStakeholder, Ratings: pair("A Layer 2", "B Layer 2", 1)},
		{Name: "layer_1", Layer: model.LayerGroup, Path: []string{"A Layer 2"}, Ratings: pair("A Layer 1", "B Layer 1", 3)},
		{Name: "layer_1a", Layer: model.LayerGroup, Path: []string{"B Layer 2"}, Ratings: pair("A Layer 1", "B Layer 1", 5)},
		{Name: "layer_0", Layer: model.LayerCharacteristic, Path: []string{"A Layer 2", "A Layer 1"}, Ratings: pair("A Layer 0", "B Layer 0", 1.0/3)},
		{Name: "layer_0a", Layer: model.LayerCharacteristic, Path: []string{"A Layer 2", "B Layer 1"}, Ratings: pair("C Layer 0", "D Layer 0", 7)},
		{Name: "layer_0b", Layer: model.LayerCharacteristic, Path: []string{"B Layer 2", "B Layer 1"}, Ratings: pair("A Layer 0", "B Layer 0", 9)},
		{Name: "layer_0c", Layer: model.LayerCharacteristic, Path: []string{"B Layer 2", "A Layer 1"}, Ratings: pair("C Layer 0", "D Layer 0", 1.0/9)},
	}
}

func TestBuildOverallWeights(t *testing.T) {
	h, err := Build(twoStakeholderTables(), PairwiseModes(), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, h.Verify(1e-9))

	overall := h.Overall()
	require.Len(t, overall, 4)

	want := map[string]float64{
		"A Layer 0": 0.16875,
		"B Layer 0": 0.2896,
		"C Layer 0": 0.1510,
		"D Layer 0": 0.3906,
	}
	var total float64
	for _, w := range overall {
		assert.InDelta(t, want[w.Characteristic], w.Weight, 1e-3, w.Characteristic)
		total += w.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, []string{"A Layer 0", "B Layer 0", "C Layer 0", "D Layer 0"}, h.Characteristics())
	assert.Len(t, h.Derivations, 7)
}

func TestBuildPerStakeholderWeights(t *testing.T) {
	h, err := Build(twoStakeholderTables(), PairwiseModes(), DefaultOptions())
	require.NoError(t, err)

	weights := h.Weights()
	assert.Len(t, weights, 8)

	per := map[string]float64{}
	overall := map[string]float64{}
	for _, w := range weights {
		per[w.Stakeholder] += w.PerStakeholder
		overall[w.Stakeholder] += w.Overall
		assert.InDelta(t, w.GroupWeight*w.CharacteristicWeight, w.PerStakeholder, 1e-12)
		assert.InDelta(t, w.StakeholderWeight*w.PerStakeholder, w.Overall, 1e-12)
	}
	for _, s := range h.Stakeholders {
		assert.InDelta(t, 1.0, per[s.Name], 1e-9)
		assert.InDelta(t, s.Local, overall[s.Name], 1e-9)
	}

	leaf := h.Leaves()[0]
	assert.Equal(t, []string{"A Layer 2", "A Layer 1", "A Layer 0"}, leaf.Path())
	assert.InDelta(t, 0.75*0.25, leaf.Composed(false), 1e-12)
	assert.InDelta(t, 0.5*0.75*0.25, leaf.Composed(true), 1e-12)
}

func TestBuildMixedModes(t *testing.T) {
	tables := twoStakeholderTables()
	tables[0].Ratings = Ratings{Labels: []string{"A Layer 2", "B Layer 2"}, Vector: []float64{3, 1}}

	modes := PairwiseModes()
	modes.Stakeholder = ModeDirect
	h, err := Build(tables, modes, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.75, h.Stakeholders[0].Local, 1e-12)
	require.NoError(t, h.Verify(1e-9))
}

func TestBuildRejectsIncompleteHierarchy(t *testing.T) {
	t.Run("missing stakeholder table", func(t *testing.T) {
		_, err := Build(twoStakeholderTables()[1:], PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("missing characteristic table", func(t *testing.T) {
		tables := twoStakeholderTables()
		_, err := Build(tables[:len(tables)-1], PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("duplicate parent", func(t *testing.T) {
		tables := append(twoStakeholderTables(), RatingTable{
			Layer: model.LayerGroup, Path: []string{"A Layer 2"}, Ratings: pair("A Layer 1", "B Layer 1", 2),
		})
		_, err := Build(tables, PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("dangling table", func(t *testing.T) {
		tables := append(twoStakeholderTables(), RatingTable{
			Layer: model.LayerCharacteristic, Path: []string{"C Layer 2", "A Layer 1"}, Ratings: pair("A Layer 0", "B Layer 0", 2),
		})
		_, err := Build(tables, PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("characteristic under two groups", func(t *testing.T) {
		tables := twoStakeholderTables()
		tables[4].Ratings = pair("A Layer 0", "D Layer 0", 7)
		_, err := Build(tables, PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("bad path length", func(t *testing.T) {
		tables := twoStakeholderTables()
		tables[1].Path = nil
		_, err := Build(tables, PairwiseModes(), DefaultOptions())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}
