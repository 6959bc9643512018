package fairness

import (
	"iter"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Identity is one subject's embeddings inside a group.
type Identity struct {
	Label      string
	Embeddings [][]float64
}

// PairSample holds sampled genuine (same identity) and impostor (different
// identity) distances. Order carries no meaning after sampling.
type PairSample struct {
	Genuine  []float64
	Impostor []float64
}

// Reservoir draws a uniform sample of at most k items from seq using
// Algorithm R. k <= 0 keeps every item. The same seq order and rng state
// always produce the same sample.
func Reservoir(seq iter.Seq[float64], k int, rng *rand.Rand) []float64 {
	var out []float64
	if k > 0 {
		out = make([]float64, 0, k)
	}

	i := 0
	for d := range seq {
		switch {
		case k <= 0 || i < k:
			out = append(out, d)
		default:
			if j := rng.Intn(i + 1); j < k {
				out[j] = d
			}
		}
		i++
	}
	return out
}

// GenuinePairs lazily yields the distance of every unordered pair (i<j)
// within each identity, identity by identity in slice order.
func GenuinePairs(ids []Identity) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for _, id := range ids {
			e := id.Embeddings
			for i := 0; i < len(e); i++ {
				for j := i + 1; j < len(e); j++ {
					if !yield(MustCosineDistance(e[i], e[j])) {
						return
					}
				}
			}
		}
	}
}

// ImpostorPairs lazily yields the distance of every embedding pair drawn
// from two distinct identities, over all identity pairs (a<b) in slice order.
// The full cross product is never materialized.
func ImpostorPairs(ids []Identity) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for a := 0; a < len(ids); a++ {
			for b := a + 1; b < len(ids); b++ {
				for _, x := range ids[a].Embeddings {
					for _, y := range ids[b].Embeddings {
						if !yield(MustCosineDistance(x, y)) {
							return
						}
					}
				}
			}
		}
	}
}

// SamplePairs samples genuine pairs, then impostor pairs, from the same rng.
// The fixed consumption order is what makes a seed reproducible.
func SamplePairs(ids []Identity, maxPairs int, rng *rand.Rand) PairSample {
	return PairSample{
		Genuine:  Reservoir(GenuinePairs(ids), maxPairs, rng),
		Impostor: Reservoir(ImpostorPairs(ids), maxPairs, rng),
	}
}

// GroupSeed derives an independent seed for one group so groups can be
// audited in any order, or in parallel, with identical results.
func GroupSeed(seed int64, group string) int64 {
	return seed ^ int64(xxhash.Sum64String(group))
}

// NewGroupRand returns a generator seeded with GroupSeed(seed, group).
func NewGroupRand(seed int64, group string) *rand.Rand {
	return rand.New(rand.NewSource(GroupSeed(seed, group)))
}
