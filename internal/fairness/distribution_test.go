package fairness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Empty(t *testing.T) {
	s := Analyze(nil, 20)

	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.Mean)
	assert.Nil(t, s.Std)
	assert.Nil(t, s.Min)
	assert.Nil(t, s.Max)
	assert.Nil(t, s.P50)
	assert.Len(t, s.Histogram.Counts, 20)
	assert.Len(t, s.Histogram.Edges, 21)
	for _, c := range s.Histogram.Counts {
		assert.Zero(t, c)
	}
}

func TestAnalyze_Stats(t *testing.T) {
	s := Analyze([]float64{0.4, 0.1, 0.3, 0.2}, 10)

	require.Equal(t, 4, s.Count)
	assert.InDelta(t, 0.25, *s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.0125), *s.Std, 1e-12)
	assert.InDelta(t, 0.1, *s.Min, 1e-12)
	assert.InDelta(t, 0.4, *s.Max, 1e-12)
	assert.InDelta(t, 0.25, *s.P50, 1e-12)
	assert.InDelta(t, 0.13, *s.P10, 1e-12)
	assert.InDelta(t, 0.37, *s.P90, 1e-12)
}

func TestAnalyze_HistogramEdges(t *testing.T) {
	s := Analyze([]float64{-0.2, 0.0, 0.55, 1.0, 1.7}, 4)

	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, s.Histogram.Edges, 1e-12)
	assert.Equal(t, []int{2, 0, 1, 2}, s.Histogram.Counts)
}

func TestAnalyze_DefaultBins(t *testing.T) {
	s := Analyze([]float64{0.5}, 0)
	assert.Len(t, s.Histogram.Counts, DefaultHistogramBins)
}

func TestOverlap(t *testing.T) {
	x := []float64{0.12, 0.33, 0.34, 0.51, 0.52, 0.77, 0.9}

	same := Overlap(x, x, 20)
	require.NotNil(t, same)
	assert.InDelta(t, 1.0, *same, 1e-9)

	disjoint := Overlap([]float64{0.1, 0.15, 0.2}, []float64{0.7, 0.75, 0.8}, 20)
	require.NotNil(t, disjoint)
	assert.Equal(t, 0.0, *disjoint)

	// half of the genuine mass shares a bin with all of the impostor mass
	half := Overlap([]float64{0.11, 0.81}, []float64{0.82, 0.83}, 10)
	require.NotNil(t, half)
	assert.InDelta(t, 0.5, *half, 1e-9)

	assert.Nil(t, Overlap(nil, x, 20))
	assert.Nil(t, Overlap(x, nil, 20))
}

func TestDPrime(t *testing.T) {
	d := DPrime([]float64{0.1, 0.2}, []float64{0.7, 0.8})
	require.NotNil(t, d)
	assert.InDelta(t, 12.0, *d, 1e-3)

	assert.Nil(t, DPrime(nil, []float64{0.7}))
	assert.Nil(t, DPrime([]float64{0.1}, nil))
	// constant samples have no pooled variance
	assert.Nil(t, DPrime([]float64{0.2, 0.2}, []float64{0.8, 0.8}))
}
