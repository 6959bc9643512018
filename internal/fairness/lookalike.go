package fairness

import "math"

// DefaultLookalikeRatio scales the active threshold down to the strict
// look-alike cut.
const DefaultLookalikeRatio = 0.85

// smallImpostorSample is the sample size below which the 10th percentile is
// used instead of the 5th.
const smallImpostorSample = 20

// LookalikeRisk describes the impostor pairs that sit closer than a strict
// tail threshold. Such pairs come from different subjects yet look nearly
// identical to the model (twins, look-alikes) and are surfaced rather than
// silently accepted as matches.
type LookalikeRisk struct {
	Ratio         float64  `json:"ratio"`
	Percentile    float64  `json:"percentile"`
	TailThreshold *float64 `json:"tailThreshold"`
	Rate          *float64 `json:"rate"`
	Count         int      `json:"count"`
	Elevated      bool     `json:"elevated"`
}

// EstimateLookalikeRisk computes tail = min(threshold*ratio, p) where p is
// the 5th percentile of impostor distances (10th under 20 samples), and the
// fraction of impostor pairs at or below it.
func EstimateLookalikeRisk(impostor []float64, threshold, ratio float64) LookalikeRisk {
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultLookalikeRatio
	}
	risk := LookalikeRisk{Ratio: ratio, Percentile: 5}
	if len(impostor) < smallImpostorSample {
		risk.Percentile = 10
	}
	if len(impostor) == 0 {
		return risk
	}

	p := Quantile(sortedCopy(impostor), risk.Percentile/100)
	tail := math.Min(threshold*ratio, p)

	for _, d := range impostor {
		if d <= tail {
			risk.Count++
		}
	}
	risk.TailThreshold = ptr(tail)
	risk.Rate = ptr(float64(risk.Count) / float64(len(impostor)))
	risk.Elevated = risk.Count > 0
	return risk
}
