package fairness

import (
	"math"
	"sort"
)

// Target false-positive rates outside this range are clamped.
const (
	MinTargetFPR = 0.001
	MaxTargetFPR = 0.2
)

// CalibrateThreshold returns the distance below which targetFPR of the
// impostor pairs fall, so that accepting d <= threshold admits roughly that
// fraction of impostors. With no impostor pairs it returns fallback: the
// calibration degrades to the baseline rather than failing.
func CalibrateThreshold(impostor []float64, targetFPR, fallback float64) float64 {
	if len(impostor) == 0 {
		return fallback
	}
	return Quantile(sortedCopy(impostor), ClampTargetFPR(targetFPR))
}

// ClampTargetFPR clamps a requested rate to [MinTargetFPR, MaxTargetFPR].
func ClampTargetFPR(target float64) float64 {
	return math.Min(math.Max(target, MinTargetFPR), MaxTargetFPR)
}

// Quantile returns the q-quantile (q in [0,1]) of an ascending slice using
// linear interpolation between the two nearest order statistics. It returns
// NaN for an empty slice.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func sortedCopy(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}
