package ahp

import (
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// RatingTable is one rating input: the siblings under the parent named by
// Path. Path is empty for the stakeholder layer, [stakeholder] for the
// group layer and [stakeholder, group] for the characteristic layer.
type RatingTable struct {
	Name    string      `json:"name,omitempty"`
	Layer   model.Layer `json:"layer"`
	Path    []string    `json:"path,omitempty"`
	Ratings Ratings     `json:"ratings"`
}

// NodeName joins a hierarchy path for messages and keys.
func NodeName(path ...string) string {
	if len(path) == 0 {
		return "stakeholders"
	}
	return strings.Join(path, "/")
}

// Modes selects the rating mode per layer.
type Modes struct {
	Stakeholder    Mode `json:"stakeholder" yaml:"stakeholder"`
	Group          Mode `json:"group" yaml:"group"`
	Characteristic Mode `json:"characteristic" yaml:"characteristic"`
}

// PairwiseModes rates every layer with pairwise matrices.
func PairwiseModes() Modes {
	return Modes{Stakeholder: ModePairwise, Group: ModePairwise, Characteristic: ModePairwise}
}

func (m Modes) forLayer(l model.Layer) Mode {
	switch l {
	case model.LayerStakeholder:
		return m.Stakeholder
	case model.LayerGroup:
		return m.Group
	default:
		return m.Characteristic
	}
}

// Node is one hierarchy node holding its weight relative to its siblings.
type Node struct {
	Name     string
	Layer    model.Layer
	Local    float64
	Parent   *Node
	Children []*Node
}

// Composed multiplies local weights from n up to its stakeholder. The
// stakeholder's own weight is included only when withStakeholder is set.
func (n *Node) Composed(withStakeholder bool) float64 {
	w := 1.0
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Layer == model.LayerStakeholder {
			if withStakeholder {
				w *= cur.Local
			}
			break
		}
		w *= cur.Local
	}
	return w
}

// Path returns the names from the stakeholder down to n.
func (n *Node) Path() []string {
	var out []string
	for cur := n; cur != nil; cur = cur.Parent {
		out = append([]string{cur.Name}, out...)
	}
	return out
}

// Hierarchy is the stakeholder → group → characteristic weight tree.
type Hierarchy struct {
	Stakeholders []*Node
	Derivations  []Derivation
}

// Build derives weights for every rating table and links them into a tree.
// Every stakeholder needs exactly one group table and every group exactly
// one characteristic table.
func Build(tables []RatingTable, modes Modes, opts Options) (*Hierarchy, error) {
	byParent := make(map[string]RatingTable, len(tables))
	var top *RatingTable
	for i := range tables {
		t := tables[i]
		want := 2 - int(t.Layer)
		if t.Layer < model.LayerCharacteristic || t.Layer > model.LayerStakeholder || len(t.Path) != want {
			return nil, model.ConfigErrorf("ahp", tableName(t), "%s table needs a parent path of length %d, got %v", t.Layer, want, t.Path)
		}
		key := NodeName(t.Path...)
		if _, dup := byParent[key]; dup {
			return nil, model.ConfigErrorf("ahp", tableName(t), "duplicate rating table for %s", key)
		}
		byParent[key] = t
		if t.Layer == model.LayerStakeholder {
			top = &tables[i]
		}
	}
	if top == nil {
		return nil, model.ConfigErrorf("ahp", "stakeholders", "missing stakeholder rating table")
	}

	h := &Hierarchy{}
	used := 0
	derive := func(t RatingTable) (Derivation, error) {
		used++
		d, err := DeriveWeights(NodeName(t.Path...), t.Ratings, modes.forLayer(t.Layer), opts)
		if err != nil {
			return Derivation{}, err
		}
		h.Derivations = append(h.Derivations, d)
		return d, nil
	}

	sd, err := derive(*top)
	if err != nil {
		return nil, err
	}
	for i, sName := range sd.Labels {
		s := &Node{Name: sName, Layer: model.LayerStakeholder, Local: sd.Weights[i]}
		gt, ok := byParent[NodeName(sName)]
		if !ok {
			return nil, model.ConfigErrorf("ahp", sName, "missing group rating table for stakeholder")
		}
		gd, err := derive(gt)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]string)
		for j, gName := range gd.Labels {
			g := &Node{Name: gName, Layer: model.LayerGroup, Local: gd.Weights[j], Parent: s}
			ct, ok := byParent[NodeName(sName, gName)]
			if !ok {
				return nil, model.ConfigErrorf("ahp", NodeName(sName, gName), "missing characteristic rating table for group")
			}
			cd, err := derive(ct)
			if err != nil {
				return nil, err
			}
			for k, cName := range cd.Labels {
				if prev, dup := seen[cName]; dup {
					return nil, model.ConfigErrorf("ahp", NodeName(sName, gName),
						"characteristic %q already belongs to group %q of this stakeholder", cName, prev)
				}
				seen[cName] = gName
				g.Children = append(g.Children, &Node{Name: cName, Layer: model.LayerCharacteristic, Local: cd.Weights[k], Parent: g})
			}
			s.Children = append(s.Children, g)
		}
		h.Stakeholders = append(h.Stakeholders, s)
	}

	if used != len(tables) {
		for key, t := range byParent {
			if !h.reaches(t.Path) {
				return nil, model.ConfigErrorf("ahp", key, "rating table does not attach to the hierarchy")
			}
		}
	}
	return h, nil
}

func tableName(t RatingTable) string {
	if t.Name != "" {
		return t.Name
	}
	return NodeName(t.Path...)
}

func (h *Hierarchy) reaches(path []string) bool {
	if len(path) == 0 {
		return true
	}
	for _, s := range h.Stakeholders {
		if s.Name != path[0] {
			continue
		}
		if len(path) == 1 {
			return true
		}
		for _, g := range s.Children {
			if g.Name == path[1] {
				return true
			}
		}
	}
	return false
}

// Leaves returns every characteristic node in tree order.
func (h *Hierarchy) Leaves() []*Node {
	var out []*Node
	for _, s := range h.Stakeholders {
		for _, g := range s.Children {
			out = append(out, g.Children...)
		}
	}
	return out
}

// Characteristics returns the distinct characteristic names in first-seen order.
func (h *Hierarchy) Characteristics() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range h.Leaves() {
		if !seen[l.Name] {
			seen[l.Name] = true
			out = append(out, l.Name)
		}
	}
	return out
}

// Weight is the composed weight of one characteristic under one stakeholder.
type Weight struct {
	Stakeholder          string  `json:"stakeholder"`
	Group                string  `json:"group"`
	Characteristic       string  `json:"characteristic"`
	StakeholderWeight    float64 `json:"stakeholder_weight"`
	GroupWeight          float64 `json:"group_weight"`
	CharacteristicWeight float64 `json:"characteristic_weight"`
	// PerStakeholder = group × characteristic; sums to 1 per stakeholder.
	PerStakeholder float64 `json:"per_stakeholder"`
	// Overall = stakeholder × group × characteristic; sums to the stakeholder weight.
	Overall float64 `json:"overall"`
}

// Weights lists the composed weight of every leaf in tree order.
func (h *Hierarchy) Weights() []Weight {
	leaves := h.Leaves()
	out := make([]Weight, 0, len(leaves))
	for _, l := range leaves {
		g := l.Parent
		s := g.Parent
		out = append(out, Weight{
			Stakeholder:          s.Name,
			Group:                g.Name,
			Characteristic:       l.Name,
			StakeholderWeight:    s.Local,
			GroupWeight:          g.Local,
			CharacteristicWeight: l.Local,
			PerStakeholder:       l.Composed(false),
			Overall:              l.Composed(true),
		})
	}
	return out
}

// OverallWeight is a characteristic's weight in the stakeholder-weighted view.
type OverallWeight struct {
	Characteristic string  `json:"characteristic"`
	Weight         float64 `json:"weight"`
}

// Overall sums the overall composed weights per characteristic across
// stakeholders. The result sums to 1.
func (h *Hierarchy) Overall() []OverallWeight {
	idx := make(map[string]int)
	var out []OverallWeight
	for _, w := range h.Weights() {
		i, ok := idx[w.Characteristic]
		if !ok {
			i = len(out)
			idx[w.Characteristic] = i
			out = append(out, OverallWeight{Characteristic: w.Characteristic})
		}
		out[i].Weight += w.Overall
	}
	return out
}

// Verify checks that composed weights sum to 1 per stakeholder and overall.
func (h *Hierarchy) Verify(tol float64) error {
	per := make(map[string]float64)
	var total float64
	for _, w := range h.Weights() {
		per[w.Stakeholder] += w.PerStakeholder
		total += w.Overall
	}
	for _, s := range h.Stakeholders {
		if math.Abs(per[s.Name]-1) > tol {
			return fmt.Errorf("weights of stakeholder %q sum to %.6f", s.Name, per[s.Name])
		}
	}
	if math.Abs(total-1) > tol {
		return fmt.Errorf("overall weights sum to %.6f", total)
	}
	return nil
}
