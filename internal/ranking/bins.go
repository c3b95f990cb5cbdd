package ranking

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// DefaultBinLabels are the labels used for three bins, lowest first.
var DefaultBinLabels = []string{"red", "yellow", "green"}

// Bins configures categorical binning of totals.
type Bins struct {
	Count int `json:"number_of_ranking_bins" yaml:"number_of_ranking_bins"`
	// Labels name the bins from lowest to highest.
	Labels []string `json:"ranking_bin_labels" yaml:"ranking_bin_labels"`
	// LowerLimitZero anchors the lowest edge at 0 instead of the observed minimum.
	LowerLimitZero bool `json:"lower_ranking_limit_0" yaml:"lower_ranking_limit_0"`
}

// DefaultBins returns three red/yellow/green bins over the observed range.
func DefaultBins() Bins {
	return Bins{Count: 3, Labels: append([]string(nil), DefaultBinLabels...)}
}

// Validate requires at least one bin and exactly one label per bin.
func (b Bins) Validate() error {
	if b.Count < 1 {
		return model.ConfigErrorf("ranking", "number_of_ranking_bins", "need at least one bin, got %d", b.Count)
	}
	if len(b.Labels) != b.Count {
		return model.ConfigErrorf("ranking", "ranking_bin_labels",
			"number of ranking bins is %d but %d labels were given %v", b.Count, len(b.Labels), b.Labels)
	}
	return nil
}

// Edges are the lower bound and width of equal-width bins.
type Edges struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Width float64 `json:"width"`
}

// edges spans the totals with Count equal-width bins.
func (b Bins) edges(totals []float64) (Edges, error) {
	if len(totals) == 0 {
		return Edges{}, nil
	}
	lo, err := stats.Min(totals)
	if err != nil {
		return Edges{}, err
	}
	hi, err := stats.Max(totals)
	if err != nil {
		return Edges{}, err
	}
	if b.LowerLimitZero {
		lo = 0
	}
	return Edges{Lower: lo, Upper: hi, Width: (hi - lo) / float64(b.Count)}, nil
}

// binEpsilon absorbs rounding when a total sits exactly on an inner edge.
const binEpsilon = 1e-9

// index returns the bin of total. Values on an edge fall into the higher bin,
// the maximum into the top bin, and a zero-width range puts everything on top.
func (b Bins) index(e Edges, total float64) int {
	if e.Width <= 0 {
		return b.Count - 1
	}
	i := int(math.Floor((total-e.Lower)/e.Width + binEpsilon))
	if i < 0 {
		return 0
	}
	if i >= b.Count {
		return b.Count - 1
	}
	return i
}

// Label returns the label of the bin total falls in.
func (b Bins) Label(e Edges, total float64) string {
	return b.Labels[b.index(e, total)]
}
