package fairness

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetrics_SeparatedScenario(t *testing.T) {
	m := ComputeMetrics([]float64{0.1, 0.15, 0.2}, []float64{0.7, 0.75, 0.8}, 0.68)

	require.NotNil(t, m.FPR)
	require.NotNil(t, m.FNR)
	require.NotNil(t, m.BalancedAccuracy)
	assert.Equal(t, 0.68, m.Threshold)
	assert.Equal(t, 0.0, *m.FPR)
	assert.Equal(t, 0.0, *m.FNR)
	assert.Equal(t, 1.0, *m.BalancedAccuracy)
	assert.Equal(t, 1.0, *m.Accuracy)
}

func TestComputeMetrics_Mixed(t *testing.T) {
	genuine := []float64{0.1, 0.9}
	impostor := []float64{0.5, 0.95, 0.99, 0.2}

	m := ComputeMetrics(genuine, impostor, 0.6)

	assert.InDelta(t, 0.5, *m.FNR, 1e-12)
	assert.InDelta(t, 0.5, *m.TPR, 1e-12)
	assert.InDelta(t, 0.5, *m.FPR, 1e-12)
	assert.InDelta(t, 0.5, *m.TNR, 1e-12)
	assert.InDelta(t, 0.5, *m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, *m.BalancedAccuracy, 1e-12)
}

func TestComputeMetrics_ThresholdBoundary(t *testing.T) {
	// d == threshold counts as a match on both sides
	m := ComputeMetrics([]float64{0.5}, []float64{0.5}, 0.5)
	assert.Equal(t, 1.0, *m.FPR)
	assert.Equal(t, 0.0, *m.FNR)
}

func TestComputeMetrics_Absent(t *testing.T) {
	noImpostor := ComputeMetrics([]float64{0.2, 0.3}, nil, 0.68)
	assert.Nil(t, noImpostor.FPR)
	assert.Nil(t, noImpostor.TNR)
	assert.Nil(t, noImpostor.Accuracy)
	assert.Nil(t, noImpostor.BalancedAccuracy)
	require.NotNil(t, noImpostor.FNR)
	assert.Equal(t, 0.0, *noImpostor.FNR)

	noGenuine := ComputeMetrics(nil, []float64{0.2}, 0.68)
	assert.Nil(t, noGenuine.FNR)
	assert.Nil(t, noGenuine.TPR)
	require.NotNil(t, noGenuine.FPR)
	assert.Equal(t, 1.0, *noGenuine.FPR)

	none := ComputeMetrics(nil, nil, 0.68)
	assert.Nil(t, none.FPR)
	assert.Nil(t, none.FNR)
	assert.Nil(t, none.TPR)
	assert.Nil(t, none.TNR)
	assert.Nil(t, none.Accuracy)
	assert.Nil(t, none.BalancedAccuracy)
}

func TestComputeMetricsMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sample := gen.SliceOfN(40, gen.Float64Range(0, 2))
	threshold := gen.Float64Range(0, 2)

	properties.Property("fpr is non-decreasing in threshold", prop.ForAll(
		func(impostor []float64, t1, t2 float64) bool {
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			return *ComputeMetrics(nil, impostor, t1).FPR <= *ComputeMetrics(nil, impostor, t2).FPR
		},
		sample, threshold, threshold,
	))

	properties.Property("fnr is non-increasing in threshold", prop.ForAll(
		func(genuine []float64, t1, t2 float64) bool {
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			return *ComputeMetrics(genuine, nil, t1).FNR >= *ComputeMetrics(genuine, nil, t2).FNR
		},
		sample, threshold, threshold,
	))

	properties.Property("balanced accuracy stays in [0, 1]", prop.ForAll(
		func(genuine, impostor []float64, th float64) bool {
			ba := *ComputeMetrics(genuine, impostor, th).BalancedAccuracy
			return ba >= 0 && ba <= 1
		},
		sample, sample, threshold,
	))

	properties.TestingRun(t)
}
