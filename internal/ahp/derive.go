package ahp

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
)

// Mode selects how sibling ratings are expressed.
type Mode string

const (
	// ModePairwise reads a reciprocal pairwise comparison matrix.
	ModePairwise Mode = "pairwise"
	// ModeDirect reads one rating per sibling and normalizes it.
	ModeDirect Mode = "direct"
)

// Method selects how a priority vector is extracted from a pairwise matrix.
type Method string

const (
	// MethodColumnAverage normalizes each column to sum 1 and averages the rows.
	MethodColumnAverage Method = "column_average"
	// MethodGeometricMean takes the n-th root of each row product.
	MethodGeometricMean Method = "geometric_mean"
)

var errEigen = errors.New("eigen decomposition did not converge")

// SaatyRandomIndex is the average consistency index of random matrices by order.
var SaatyRandomIndex = map[int]float64{
	1: 0, 2: 0, 3: 0.58, 4: 0.90, 5: 1.12, 6: 1.24, 7: 1.32, 8: 1.41, 9: 1.45, 10: 1.49,
}

// Ratings carry the relative importance of siblings under one parent,
// either as a pairwise Matrix or as a direct Vector.
type Ratings struct {
	Labels []string    `json:"labels"`
	Matrix [][]float64 `json:"matrix,omitempty"`
	Vector []float64   `json:"vector,omitempty"`
}

// Options tune weight derivation.
type Options struct {
	Method              Method  `json:"method" yaml:"method"`
	ReciprocalTolerance float64 `json:"reciprocal_tolerance" yaml:"reciprocal_tolerance"`
	// ConsistencyThreshold rejects matrices whose consistency ratio exceeds
	// it. Zero only reports the ratio.
	ConsistencyThreshold float64         `json:"consistency_threshold" yaml:"consistency_threshold"`
	RandomIndex          map[int]float64 `json:"random_index,omitempty" yaml:"random_index,omitempty"`
}

// DefaultOptions uses the column-average method, tolerates reciprocals
// typed with three decimals and does not enforce consistency.
func DefaultOptions() Options {
	return Options{
		Method:              MethodColumnAverage,
		ReciprocalTolerance: 0.01,
		RandomIndex:         SaatyRandomIndex,
	}
}

// Derivation is the outcome of deriving weights for one parent node.
type Derivation struct {
	Node   string    `json:"node"`
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
	// Weights are Scores normalized to sum to 1.
	Weights []float64 `json:"weights"`

	LambdaMax        float64 `json:"lambda_max,omitempty"`
	ConsistencyIndex float64 `json:"consistency_index,omitempty"`
	ConsistencyRatio float64 `json:"consistency_ratio,omitempty"`
}

// Weight returns the weight of label and whether it exists.
func (d Derivation) Weight(label string) (float64, bool) {
	for i, l := range d.Labels {
		if l == label {
			return d.Weights[i], true
		}
	}
	return 0, false
}

// DeriveWeights turns one node's ratings into a normalized weight vector.
func DeriveWeights(node string, r Ratings, mode Mode, opts Options) (Derivation, error) {
	switch mode {
	case ModePairwise:
		return derivePairwise(node, r, opts)
	case ModeDirect:
		return deriveDirect(node, r)
	default:
		return Derivation{}, model.ConfigErrorf("ahp", node, "unknown rating mode %q", mode)
	}
}

func deriveDirect(node string, r Ratings) (Derivation, error) {
	if len(r.Labels) == 1 && len(r.Vector) == 0 {
		r.Vector = []float64{1}
	}
	if len(r.Vector) != len(r.Labels) || len(r.Labels) == 0 {
		return Derivation{}, model.ConfigErrorf("ahp", node, "rating vector has %d values for %d labels", len(r.Vector), len(r.Labels))
	}
	for i, v := range r.Vector {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Derivation{}, model.ConfigErrorf("ahp", node, "invalid rating %g for %q", v, r.Labels[i])
		}
	}
	scores := append([]float64(nil), r.Vector...)
	weights, err := normalize(node, scores)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{Node: node, Labels: append([]string(nil), r.Labels...), Scores: scores, Weights: weights}, nil
}

func derivePairwise(node string, r Ratings, opts Options) (Derivation, error) {
	m, err := Matrix{Labels: r.Labels, Values: r.Matrix}.Complete(node, opts.ReciprocalTolerance)
	if err != nil {
		return Derivation{}, err
	}
	n := m.Size()

	var scores []float64
	switch opts.Method {
	case MethodColumnAverage, "":
		scores = columnAverage(m.Values)
	case MethodGeometricMean:
		scores = geometricMean(m.Values)
	default:
		return Derivation{}, model.ConfigErrorf("ahp", node, "unknown derivation method %q", opts.Method)
	}
	weights, err := normalize(node, scores)
	if err != nil {
		return Derivation{}, err
	}

	d := Derivation{Node: node, Labels: m.Labels, Scores: scores, Weights: weights}
	if n > 2 {
		lambda, err := principalEigenvalue(m.Values)
		if err != nil {
			return Derivation{}, model.ConfigErrorf("ahp", node, "eigenvalue: %v", err)
		}
		d.LambdaMax = lambda
		d.ConsistencyIndex = (lambda - float64(n)) / float64(n-1)
		ri := opts.RandomIndex
		if ri == nil {
			ri = SaatyRandomIndex
		}
		if v, ok := ri[n]; ok && v > 0 {
			d.ConsistencyRatio = d.ConsistencyIndex / v
		}
		if opts.ConsistencyThreshold > 0 && d.ConsistencyRatio > opts.ConsistencyThreshold {
			return Derivation{}, model.ConfigErrorf("ahp", node,
				"consistency ratio %.3f exceeds threshold %.3f; revise the ratings", d.ConsistencyRatio, opts.ConsistencyThreshold)
		}
	}
	return d, nil
}

func columnAverage(a [][]float64) []float64 {
	n := len(a)
	colSum := make([]float64, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			colSum[j] += a[i][j]
		}
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i] += a[i][j] / colSum[j]
		}
		out[i] /= float64(n)
	}
	return out
}

func geometricMean(a [][]float64) []float64 {
	n := len(a)
	out := make([]float64, n)
	for i, row := range a {
		out[i] = math.Pow(floats.Prod(row), 1/float64(n))
	}
	return out
}

func normalize(node string, scores []float64) ([]float64, error) {
	sum := floats.Sum(scores)
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, model.ConfigErrorf("ahp", node, "ratings sum to %g", sum)
	}
	out := append([]float64(nil), scores...)
	floats.Scale(1/sum, out)
	return out, nil
}

func principalEigenvalue(a [][]float64) (float64, error) {
	n := len(a)
	flat := make([]float64, 0, n*n)
	for _, row := range a {
		flat = append(flat, row...)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(mat.NewDense(n, n, flat), mat.EigenNone); !ok {
		return 0, errEigen
	}
	lambda := math.Inf(-1)
	for _, v := range eig.Values(nil) {
		if math.Abs(imag(v)) < 1e-9 && real(v) > lambda {
			lambda = real(v)
		}
	}
	if math.IsInf(lambda, -1) {
		// A positive reciprocal matrix always has a real Perron root; fall
		// back to the largest modulus if rounding made it complex.
		for _, v := range eig.Values(nil) {
			lambda = math.Max(lambda, cmplx.Abs(v))
		}
	}
	return lambda, nil
}
