// Package graph implements the waypoint logic of §4.4 step 4, §4.5
// steps 5 and 8, and §4.6 step 5: creation at add time, 1-hop
// expansion and reinforcement at query time, and periodic pruning.
// Storage of the edges themselves belongs to internal/store; this
// package is pure logic over the vectors/weights it is handed.
package graph

import (
	"context"

	"github.com/openmemory/engine/internal/model"
)

const (
	// DefaultThreshold is the minimum cosine similarity for edge
	// creation (§4.4 step 4 / §6 waypoint_threshold).
	DefaultThreshold = 0.75
	// DefaultPruneWeight is the weight below which edges are pruned
	// (§4.6 step 5 / §6 waypoint_prune_weight).
	DefaultPruneWeight = 0.05
	// DefaultPruneDays is the pruning cadence (§6 waypoint_prune_days).
	DefaultPruneDays = 7
	// ExpansionDiscount multiplies a neighbor's inherited similarity
	// during 1-hop expansion (§4.5 step 5).
	ExpansionDiscount = 0.9
	// DefaultReinforceDelta is added to an edge's weight when it is
	// traversed during a recall (§4.5 step 8 / §6 waypoint_reinforce_delta).
	DefaultReinforceDelta = 0.05
)

// MeanCandidate is one existing memory's centroid, as scanned by
// Engine.Add when looking for a waypoint target.
type MeanCandidate struct {
	ID            int64
	MeanVec       []float32
	PrimarySector model.Sector
}

// BestMatch implements §4.4 step 4's linear scan: the candidate whose
// mean_vec is closest by cosine similarity to target. ok is false if
// candidates is empty.
func BestMatch(target []float32, candidates []MeanCandidate) (best MeanCandidate, cosine float64, ok bool) {
	bestCos := -2.0
	for _, c := range candidates {
		cos := model.Cosine(target, c.MeanVec)
		if cos > bestCos {
			bestCos = cos
			best = c
			ok = true
		}
	}
	return best, bestCos, ok
}

// Waypoints is the subset of store.Store this package needs, kept
// narrow so graph logic can be tested against a fake without pulling
// in the whole Store interface.
type Waypoints interface {
	UpsertWaypoint(ctx context.Context, src, dst int64, weight float64) error
	OutgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error)
	DeleteWaypointsBelow(ctx context.Context, threshold float64) (int, error)
}

// CreateEdges implements §4.4 step 4: if cosine >= threshold, create
// the forward edge newID -> best.ID, and — if primary sectors differ —
// the reciprocal edge best.ID -> newID (subject to the single-
// outgoing-edge rule, which UpsertWaypoint enforces).
func CreateEdges(ctx context.Context, w Waypoints, newID int64, newSector model.Sector, best MeanCandidate, cosine, threshold float64) ([]model.Waypoint, error) {
	if cosine < threshold {
		return nil, nil
	}
	var created []model.Waypoint
	if err := w.UpsertWaypoint(ctx, newID, best.ID, cosine); err != nil {
		return nil, err
	}
	created = append(created, model.Waypoint{SrcID: newID, DstID: best.ID, Weight: cosine})

	if best.PrimarySector != newSector {
		if err := w.UpsertWaypoint(ctx, best.ID, newID, cosine); err != nil {
			return created, err
		}
		created = append(created, model.Waypoint{SrcID: best.ID, DstID: newID, Weight: cosine})
	}
	return created, nil
}

// Expand implements the 1-hop waypoint expansion of §4.5 step 5: if
// candidateID has an outgoing edge, its destination is added to the
// result set with a discounted inherited similarity.
func Expand(ctx context.Context, w Waypoints, candidateID int64, candidateSim float64) (neighborID int64, neighborSim float64, edge model.Waypoint, ok bool) {
	wp, found, err := w.OutgoingWaypoint(ctx, candidateID)
	if err != nil || !found {
		return 0, 0, model.Waypoint{}, false
	}
	return wp.DstID, candidateSim * wp.Weight * ExpansionDiscount, *wp, true
}

// Reinforce implements §4.5 step 8's edge reinforcement: +0.05 to the
// traversed edge's weight, capped at 1.0.
func Reinforce(ctx context.Context, w Waypoints, edge model.Waypoint, delta float64) error {
	return w.UpsertWaypoint(ctx, edge.SrcID, edge.DstID, model.Clamp01(edge.Weight+delta))
}

// Prune implements §4.6 step 5.
func Prune(ctx context.Context, w Waypoints, threshold float64) (int, error) {
	return w.DeleteWaypointsBelow(ctx, threshold)
}
