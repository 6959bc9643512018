package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry_Isolated(t *testing.T) {
	// two constructions on separate registries must not collide
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.AuditsTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.AuditsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AuditsTotal))
}

func TestNewWithRegistry_DuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)
	assert.Panics(t, func() { NewWithRegistry(reg) })
}

func TestLabeledCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.BalancedAccuracy.WithLabelValues("Asian", "baseline").Set(0.91)
	m.BalancedAccuracy.WithLabelValues("Asian", "mitigated").Set(0.95)
	m.CompareDecisions.WithLabelValues("adaptive", "true").Inc()

	assert.Equal(t, 0.95, testutil.ToFloat64(m.BalancedAccuracy.WithLabelValues("Asian", "mitigated")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BalancedAccuracy))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fairaudit_group_balanced_accuracy"])
	assert.True(t, names["fairaudit_compare_decisions_total"])
}
