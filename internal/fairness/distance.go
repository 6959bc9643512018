// Package fairness holds the pure math of the audit: pair distances,
// reservoir sampling, verification error rates, threshold calibration,
// distribution separability, look-alike risk and score aggregation.
//
// Nothing in this package performs I/O; randomness is always supplied by the
// caller so results are reproducible for a given seed.
package fairness

import (
	"fmt"
	"math"

	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

// distanceEpsilon keeps the denominator positive for all-zero vectors.
const distanceEpsilon = 1e-9

// CosineDistance returns 1 - cos(a, b). The result lies in [0, 2].
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", apperrors.ErrDimensionMismatch, len(a), len(b))
	}
	return cosineDistance(a, b), nil
}

// MustCosineDistance is CosineDistance for callers that have already
// checked dimensions. It panics on mismatch.
func MustCosineDistance(a, b []float64) float64 {
	d, err := CosineDistance(a, b)
	if err != nil {
		panic(err)
	}
	return d
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)+distanceEpsilon)
}

// Centroid returns the element-wise mean of vectors, or nil when vectors is
// empty. All vectors must share the first vector's dimension.
func Centroid(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	c := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d vs %d", apperrors.ErrDimensionMismatch, len(v), dim)
		}
		for i, x := range v {
			c[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range c {
		c[i] /= n
	}
	return c, nil
}

// MeanCentroidDistance is the mean distance of every vector to the group
// centroid. It is informational only and returns nil for an empty input.
func MeanCentroidDistance(vectors [][]float64) (*float64, error) {
	c, err := Centroid(vectors)
	if err != nil || c == nil {
		return nil, err
	}
	var sum float64
	for _, v := range vectors {
		sum += cosineDistance(v, c)
	}
	mean := sum / float64(len(vectors))
	return &mean, nil
}
