package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsWith(ba, fpr, fnr *float64) Metrics {
	return Metrics{Threshold: 0.68, BalancedAccuracy: ba, FPR: fpr, FNR: fnr}
}

func TestAggregateScore_Empty(t *testing.T) {
	s := AggregateScore(nil)
	assert.Equal(t, 0, s.Score)
	assert.Nil(t, s.AvgBalancedAccuracy)
	assert.Nil(t, s.FPRGap)
	assert.Zero(t, s.GapPenalty)
}

func TestAggregateScore_GapPenalty(t *testing.T) {
	s := AggregateScore([]Metrics{
		metricsWith(ptr(1.0), ptr(0.0), ptr(0.0)),
		metricsWith(ptr(0.9), ptr(0.1), ptr(0.1)),
	})

	require.NotNil(t, s.AvgBalancedAccuracy)
	assert.InDelta(t, 0.95, *s.AvgBalancedAccuracy, 1e-12)
	assert.InDelta(t, 0.1, *s.FPRGap, 1e-12)
	assert.InDelta(t, 0.1, *s.FNRGap, 1e-12)
	assert.InDelta(t, 0.1, s.GapPenalty, 1e-12)
	assert.Equal(t, 85, s.Score)
	assert.Equal(t, 2, s.GroupsScored)
}

func TestAggregateScore_SkipsGroupsWithoutAccuracy(t *testing.T) {
	s := AggregateScore([]Metrics{
		metricsWith(ptr(0.96), ptr(0.02), ptr(0.06)),
		metricsWith(nil, nil, ptr(0.5)), // single identity: no impostors
	})

	assert.Equal(t, 1, s.GroupsScored)
	assert.InDelta(t, 0.96, *s.AvgBalancedAccuracy, 1e-12)
	assert.InDelta(t, 0.0, *s.FPRGap, 1e-12)
	assert.InDelta(t, 0.44, *s.FNRGap, 1e-12)
	assert.Equal(t, 74, s.Score)
}

func TestAggregateScore_NoAccuracyAnywhere(t *testing.T) {
	s := AggregateScore([]Metrics{metricsWith(nil, ptr(0.1), nil)})
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, 0, s.GroupsScored)
}

func TestAggregateScore_Clamped(t *testing.T) {
	s := AggregateScore([]Metrics{
		metricsWith(ptr(0.5), ptr(0.0), ptr(0.0)),
		metricsWith(ptr(0.5), ptr(0.9), ptr(0.9)),
	})
	assert.Equal(t, 0, s.Score)
}
