package fairness

import (
	"math"

	"github.com/montanaflynn/stats"
)

// DefaultHistogramBins is the bin count used when none is configured.
const DefaultHistogramBins = 20

// Histogram is a fixed-range histogram over [0, 1]. Edges has len(Counts)+1
// entries. Distances above 1 land in the last bin, below 0 in the first.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// DistributionStats summarizes a distance sample. Every statistic is nil
// when the sample is empty.
type DistributionStats struct {
	Count     int       `json:"count"`
	Mean      *float64  `json:"mean"`
	Std       *float64  `json:"std"`
	Min       *float64  `json:"min"`
	Max       *float64  `json:"max"`
	P10       *float64  `json:"p10"`
	P50       *float64  `json:"p50"`
	P90       *float64  `json:"p90"`
	Histogram Histogram `json:"histogram"`
}

// Analyze computes descriptive statistics and a histogram with the given
// number of bins (DefaultHistogramBins when bins <= 0).
func Analyze(distances []float64, bins int) DistributionStats {
	out := DistributionStats{
		Count:     len(distances),
		Histogram: histogram(distances, bins),
	}
	if len(distances) == 0 {
		return out
	}

	data := stats.Float64Data(distances)
	mean, _ := stats.Mean(data)
	std, _ := stats.StandardDeviationPopulation(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)

	sorted := sortedCopy(distances)
	out.Mean = ptr(mean)
	out.Std = ptr(std)
	out.Min = ptr(lo)
	out.Max = ptr(hi)
	out.P10 = ptr(Quantile(sorted, 0.10))
	out.P50 = ptr(Quantile(sorted, 0.50))
	out.P90 = ptr(Quantile(sorted, 0.90))
	return out
}

// Overlap is the shared mass of the density-normalized genuine and impostor
// histograms over identical [0,1] bins: sum(min(g_i, i_i)) * binWidth.
// 1 means identical distributions, 0 fully separated. Nil when either side
// is empty.
func Overlap(genuine, impostor []float64, bins int) *float64 {
	if len(genuine) == 0 || len(impostor) == 0 {
		return nil
	}
	g := histogram(genuine, bins)
	im := histogram(impostor, bins)
	width := 1.0 / float64(len(g.Counts))

	var sum float64
	for b := range g.Counts {
		gd := float64(g.Counts[b]) / (float64(len(genuine)) * width)
		id := float64(im.Counts[b]) / (float64(len(impostor)) * width)
		sum += math.Min(gd, id) * width
	}
	return ptr(sum)
}

// DPrime is the detection-theory separability index
//
//	(mean(impostor) - mean(genuine)) / sqrt(0.5*(var(impostor)+var(genuine)) + eps)
//
// Nil when either side is empty or the pooled variance is not positive.
func DPrime(genuine, impostor []float64) *float64 {
	if len(genuine) == 0 || len(impostor) == 0 {
		return nil
	}
	mg, _ := stats.Mean(genuine)
	mi, _ := stats.Mean(impostor)
	vg, _ := stats.PopulationVariance(genuine)
	vi, _ := stats.PopulationVariance(impostor)

	pooled := 0.5 * (vi + vg)
	if pooled <= 0 {
		return nil
	}
	return ptr((mi - mg) / math.Sqrt(pooled+distanceEpsilon))
}

func histogram(xs []float64, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	h := Histogram{
		Edges:  make([]float64, bins+1),
		Counts: make([]int, bins),
	}
	width := 1.0 / float64(bins)
	for i := range h.Edges {
		h.Edges[i] = float64(i) * width
	}
	h.Edges[bins] = 1

	for _, x := range xs {
		idx := int(x / width)
		switch {
		case x < 0 || idx < 0:
			idx = 0
		case idx >= bins:
			idx = bins - 1
		}
		h.Counts[idx]++
	}
	return h
}
