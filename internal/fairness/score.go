package fairness

import "math"

// ScoreSummary is the overall fairness score for one metric set (baseline
// or mitigated) together with the parts it was built from.
type ScoreSummary struct {
	Score               int      `json:"score"`
	GroupsScored        int      `json:"groupsScored"`
	AvgBalancedAccuracy *float64 `json:"avgBalancedAccuracy"`
	FPRGap              *float64 `json:"fprGap"`
	FNRGap              *float64 `json:"fnrGap"`
	GapPenalty          float64  `json:"gapPenalty"`
}

// AggregateScore combines per-group metrics into a score in [0, 100]:
//
//	penalty = (fprGap + fnrGap) / 2
//	score   = round(clamp(avgBalancedAccuracy - penalty, 0, 1) * 100)
//
// Gaps are max - min across the groups that have the rate; a missing gap
// contributes nothing. The score is 0 when no group has a balanced accuracy.
func AggregateScore(groups []Metrics) ScoreSummary {
	var (
		sum      float64
		n        int
		fpr, fnr []float64
	)
	for _, m := range groups {
		if m.BalancedAccuracy != nil {
			sum += *m.BalancedAccuracy
			n++
		}
		if m.FPR != nil {
			fpr = append(fpr, *m.FPR)
		}
		if m.FNR != nil {
			fnr = append(fnr, *m.FNR)
		}
	}

	out := ScoreSummary{
		GroupsScored: n,
		FPRGap:       spread(fpr),
		FNRGap:       spread(fnr),
	}
	if out.FPRGap != nil {
		out.GapPenalty += *out.FPRGap / 2
	}
	if out.FNRGap != nil {
		out.GapPenalty += *out.FNRGap / 2
	}
	if n == 0 {
		return out
	}

	avg := sum / float64(n)
	out.AvgBalancedAccuracy = ptr(avg)
	clamped := math.Min(math.Max(avg-out.GapPenalty, 0), 1)
	out.Score = int(math.Round(clamped * 100))
	return out
}

// spread returns max - min, or nil for an empty slice.
func spread(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return ptr(hi - lo)
}
