package fairness

// Metrics are verification error rates at one threshold. A nil rate means
// the pair sample it depends on was empty; it is never defaulted to zero.
type Metrics struct {
	Threshold        float64  `json:"threshold"`
	FPR              *float64 `json:"fpr"`
	FNR              *float64 `json:"fnr"`
	TPR              *float64 `json:"tpr"`
	TNR              *float64 `json:"tnr"`
	Accuracy         *float64 `json:"accuracy"`
	BalancedAccuracy *float64 `json:"balancedAccuracy"`
}

// ComputeMetrics evaluates a distance threshold against genuine and impostor
// samples. A pair is accepted as a match when its distance is <= threshold.
//
//	FPR = |impostor <= t| / |impostor|
//	FNR = |genuine  >  t| / |genuine|
func ComputeMetrics(genuine, impostor []float64, threshold float64) Metrics {
	m := Metrics{Threshold: threshold}

	if len(impostor) > 0 {
		fpr := fraction(impostor, func(d float64) bool { return d <= threshold })
		m.FPR = ptr(fpr)
		m.TNR = ptr(1 - fpr)
	}

	if len(genuine) > 0 {
		fnr := fraction(genuine, func(d float64) bool { return d > threshold })
		m.FNR = ptr(fnr)
		m.TPR = ptr(1 - fnr)
	}

	if m.TPR != nil && m.TNR != nil {
		ng := float64(len(genuine))
		ni := float64(len(impostor))
		m.Accuracy = ptr((*m.TPR*ng + *m.TNR*ni) / (ng + ni))
		m.BalancedAccuracy = ptr((*m.TPR + *m.TNR) / 2)
	}

	return m
}

func fraction(xs []float64, pred func(float64) bool) float64 {
	n := 0
	for _, x := range xs {
		if pred(x) {
			n++
		}
	}
	return float64(n) / float64(len(xs))
}

func ptr(v float64) *float64 { return &v }
