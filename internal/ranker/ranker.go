// Package ranker implements the composite scoring formula of §4.5
// step 6 and §4.7.
package ranker

import "math"

const (
	// WeightSim, WeightSalience, WeightRecency, and WeightWaypoint are
	// the fixed composite-score weights of §4.5 step 6. They are not
	// configurable: the spec fixes them to keep recall numbers stable.
	WeightSim      = 0.6
	WeightSalience = 0.2
	WeightRecency  = 0.1
	WeightWaypoint = 0.1

	// RecencyHalfLifeDays is the divisor in recency = exp(-days/30).
	RecencyHalfLifeDays = 30.0

	// DefaultMinScore is the default query floor (§6 min_score).
	DefaultMinScore = 0.3

	// HybridBM25Weight is how much of the HYBRID sim channel BM25
	// contributes, per §4.5 step 6 ("sim := 0.5*cosine + 0.5*bm25_norm").
	HybridBM25Weight   = 0.5
	HybridCosineWeight = 0.5
)

// NormalizeSim clamps a raw cosine similarity (which may be negative
// for synthetic vectors) into [0, 1] via (sim+1)/2, per §4.7.
func NormalizeSim(sim float64) float64 {
	return (sim + 1) / 2
}

// Recency implements recency = exp(-days/30).
func Recency(ageDays float64) float64 {
	return math.Exp(-ageDays / RecencyHalfLifeDays)
}

// Composite implements the §4.5 step 6 formula. Every input is
// expected already in [0, 1].
func Composite(sim, salience, recency, waypoint float64) float64 {
	score := WeightSim*sim + WeightSalience*salience + WeightRecency*recency + WeightWaypoint*waypoint
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// BlendHybrid implements the HYBRID tier's sim blend: 0.5*cosine +
// 0.5*bm25_norm.
func BlendHybrid(cosine, bm25Norm float64) float64 {
	return HybridCosineWeight*cosine + HybridBM25Weight*bm25Norm
}
