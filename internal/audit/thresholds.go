package audit

import (
	"maps"
	"strconv"

	"github.com/fairface-insight/fairaudit/internal/api"
)

// replaceThresholds swaps in the table of the latest audit. Groups absent
// from next lose their previous adaptive threshold.
func (e *Engine) replaceThresholds(next map[string]float64) {
	table := maps.Clone(next)
	e.mu.Lock()
	e.thresholds = table
	e.mu.Unlock()
}

// AdaptiveThreshold returns the threshold the last audit calibrated for
// group.
func (e *Engine) AdaptiveThreshold(group string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.thresholds[group]
	return t, ok
}

// Thresholds returns a copy of the adaptive threshold table and whether any
// audit has populated it.
func (e *Engine) Thresholds() (map[string]float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.thresholds == nil {
		return map[string]float64{}, false
	}
	return maps.Clone(e.thresholds), true
}

// CompareThreshold decides whether distance is a match for group. With
// adaptive set it uses the group's calibrated threshold when an audit has
// produced one, and the standard threshold otherwise.
func (e *Engine) CompareThreshold(group string, distance float64, adaptive bool) api.ThresholdDecision {
	d := api.ThresholdDecision{
		ThresholdUsed: e.opts.StandardThreshold,
		Source:        api.ThresholdSourceStandard,
	}
	if adaptive {
		if t, ok := e.AdaptiveThreshold(group); ok {
			d.ThresholdUsed = t
			d.Source = api.ThresholdSourceAdaptive
		}
	}
	d.WithinThreshold = distance <= d.ThresholdUsed

	e.metrics.CompareDecisions.WithLabelValues(d.Source, strconv.FormatBool(d.WithinThreshold)).Inc()
	return d
}

// RestoreThresholds installs a table saved from an earlier audit, for
// processes that did not run the audit themselves.
func (e *Engine) RestoreThresholds(table map[string]float64) {
	e.replaceThresholds(table)
}
