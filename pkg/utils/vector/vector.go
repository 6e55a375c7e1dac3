// Package vector provides the math used for embedding similarity. All
// functions are pure: inputs are never modified.
package vector

import (
	"math"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrDimensionMismatch = model.ErrDimensionMismatch
	ErrCountMismatch     = goerr.New("vector and weight counts differ")
	ErrZeroWeight        = goerr.New("weights sum to zero")
)

func checkDim(a, b []float32) error {
	if len(a) != len(b) {
		return goerr.Wrap(ErrDimensionMismatch, "vectors must have the same length",
			goerr.V("left", len(a)), goerr.V("right", len(b)))
	}
	return nil
}

func Dot(a, b []float32) (float64, error) {
	if err := checkDim(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Similarity returns the cosine similarity of a and b. Zero-magnitude input
// yields 0 instead of an error.
func Similarity(a, b []float32) (float64, error) {
	dot, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	ma, mb := Magnitude(a), Magnitude(b)
	if ma == 0 || mb == 0 {
		return 0, nil
	}
	return dot / (ma * mb), nil
}

// Normalize returns a unit-length copy of v, or an unchanged copy when v has
// zero magnitude.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	m := Magnitude(v)
	if m == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / m)
	}
	return out
}

func Add(a, b []float32) ([]float32, error) {
	if err := checkDim(a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

func Subtract(a, b []float32) ([]float32, error) {
	if err := checkDim(a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

func Scale(v []float32, factor float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * factor)
	}
	return out
}

// WeightedAverage combines vectors after normalizing weights to sum to 1
func WeightedAverage(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) != len(weights) {
		return nil, goerr.Wrap(ErrCountMismatch, "cannot average vectors",
			goerr.V("vectors", len(vectors)), goerr.V("weights", len(weights)))
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return nil, goerr.Wrap(ErrZeroWeight, "cannot average vectors")
	}

	dim := len(vectors[0])
	acc := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, goerr.Wrap(ErrDimensionMismatch, "vector differs from the first one",
				goerr.V("index", i), goerr.V("expected", dim), goerr.V("actual", len(v)))
		}
		w := weights[i] / total
		for j, x := range v {
			acc[j] += float64(x) * w
		}
	}

	out := make([]float32, dim)
	for i, x := range acc {
		out[i] = float32(x)
	}
	return out, nil
}

// Distance returns the Euclidean distance between a and b
func Distance(a, b []float32) (float64, error) {
	if err := checkDim(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
