package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/graph"
	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/ranker"
	"github.com/openmemory/engine/internal/store"
)

// QueryOptions narrows a Query call (§6 `query`).
type QueryOptions struct {
	UserID   string
	Limit    int
	Sector   model.Sector // zero value: every candidate sector from classification
	Tag      string       // zero value: no tag filter
	MinScore *float64     // nil: use config default
}

// Explanation is the "explainable recall path" guarantee of §4.5: the
// component sub-scores and, if the result arrived via waypoint
// expansion, the edge that was traversed.
type Explanation struct {
	Sim       float64
	Salience  float64
	Recency   float64
	Waypoint  float64
	ViaEdge   *model.Waypoint
}

// QueryResult is one ranked recall.
type QueryResult struct {
	Memory      *model.Memory
	Score       float64
	Explanation Explanation
}

type candidate struct {
	sim     float64
	viaEdge *model.Waypoint
}

// Query implements §4.5: classify, embed, per-sector cosine scan with
// 1-hop waypoint expansion, composite scoring, then implicit
// reinforcement of every returned result.
func (e *Engine) Query(ctx context.Context, text string, opts QueryOptions) ([]QueryResult, error) {
	start := time.Now()
	defer func() { e.metrics.QueryLatency.Observe(time.Since(start).Seconds()) }()

	if text == "" {
		return nil, model.ErrInvalidInput("query text must not be empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	minScore := e.cfg.MinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}
	kPrime := limit
	if kPrime < 20 {
		kPrime = 20
	}

	cls := e.classifier.Classify(text)
	sectors := cls.Candidates
	if opts.Sector != "" {
		sectors = []model.Sector{opts.Sector}
	}

	vecs, err := e.embedder.EmbedBatch(ctx, text, sectors)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, model.ErrEmbedFailed(cls.PrimarySector, e.cfg.Provider, "no sector embeddings produced for query", nil)
	}

	queryTokens := embed.Tokenize(text)
	candidates := map[int64]*candidate{}

	for sec, qvec := range vecs {
		stored, err := e.store.CandidatesBySector(ctx, opts.UserID, sec)
		if err != nil {
			return nil, model.ErrStoreFailed("candidates by sector", err)
		}

		type scoredCand struct {
			store.Candidate
			cosine float64
		}
		scored := make([]scoredCand, 0, len(stored))
		for _, c := range stored {
			scored = append(scored, scoredCand{c, model.Cosine(qvec, c.Vec)})
		}
		sort.Slice(scored, func(i, j int) bool { return scored[i].cosine > scored[j].cosine })
		if len(scored) > kPrime {
			scored = scored[:kPrime]
		}

		var bm25 *ranker.BM25Index
		if e.cfg.Tier == embed.TierHybrid {
			docs := make(map[int64][]string, len(scored))
			for _, sc := range scored {
				if m, err := e.store.Get(ctx, sc.MemoryID); err == nil {
					docs[sc.MemoryID] = embed.Tokenize(m.Content)
				}
			}
			bm25 = ranker.NewBM25Index(docs)
		}

		for _, sc := range scored {
			sim := ranker.NormalizeSim(sc.cosine)
			if bm25 != nil {
				sim = ranker.BlendHybrid(ranker.NormalizeSim(sc.cosine), bm25.NormalizedScore(sc.MemoryID, queryTokens))
			}
			if existing, ok := candidates[sc.MemoryID]; !ok || sim > existing.sim {
				candidates[sc.MemoryID] = &candidate{sim: sim}
			}
		}
	}

	// 1-hop waypoint expansion (§4.5 step 5): operate on a snapshot of
	// the direct hits so expansion never chains beyond one hop.
	direct := make(map[int64]*candidate, len(candidates))
	for id, c := range candidates {
		direct[id] = c
	}
	for id, c := range direct {
		neighborID, neighborSim, edge, ok := graph.Expand(ctx, e.store, id, c.sim)
		if !ok {
			continue
		}
		if _, exists := candidates[neighborID]; exists {
			continue
		}
		edgeCopy := edge
		candidates[neighborID] = &candidate{sim: neighborSim, viaEdge: &edgeCopy}
	}

	now := e.now()
	results := make([]QueryResult, 0, len(candidates))
	for id, c := range candidates {
		m, err := e.store.Get(ctx, id)
		if err != nil {
			continue
		}
		if opts.Tag != "" && !model.HasTag(m.Tags, opts.Tag) {
			continue
		}

		ageDays := now.Sub(m.LastSeenAt).Hours() / 24
		recency := ranker.Recency(ageDays)

		waypointWeight := 0.0
		if wp, found, _ := e.outgoingWaypoint(ctx, id); found {
			waypointWeight = wp.Weight
		}

		score := ranker.Composite(c.sim, m.Salience, recency, waypointWeight)
		if score < minScore {
			continue
		}

		results = append(results, QueryResult{
			Memory: m,
			Score:  score,
			Explanation: Explanation{
				Sim:      c.sim,
				Salience: m.Salience,
				Recency:  recency,
				Waypoint: waypointWeight,
				ViaEdge:  c.viaEdge,
			},
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.LastSeenAt.Equal(results[j].Memory.LastSeenAt) {
			return results[i].Memory.LastSeenAt.After(results[j].Memory.LastSeenAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	e.reinforceRecall(ctx, results, now)
	e.reportSectorGauge(ctx)
	return results, nil
}

// reportSectorGauge refreshes the per-sector memory-count gauge from
// the store's current Stats. It rides along on Query rather than
// every write so the gauge is kept warm by read traffic without
// adding a Stats round trip to Add/Reinforce's hot path.
func (e *Engine) reportSectorGauge(ctx context.Context) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return
	}
	for sec, n := range stats.BySector {
		e.metrics.MemoriesBySector.WithLabelValues(string(sec)).Set(float64(n))
	}
}

// reinforceRecall implements §4.5 step 8: every returned memory gains
// salience and a fresh last_seen_at; every waypoint edge traversed
// during expansion is strengthened. Failures are logged, not
// propagated — recall already happened and the spec treats this as a
// best-effort side effect.
func (e *Engine) reinforceRecall(ctx context.Context, results []QueryResult, now time.Time) {
	for _, r := range results {
		newSalience := model.Clamp01(r.Memory.Salience + e.cfg.SalienceReinforceDelta)
		if err := e.store.UpdateSalience(ctx, r.Memory.ID, newSalience, now.UnixMilli()); err != nil {
			e.logger.Warn("recall reinforcement failed", zap.Int64("memory_id", r.Memory.ID), zap.Error(err))
		}
		if r.Explanation.ViaEdge != nil {
			if err := graph.Reinforce(ctx, e.store, *r.Explanation.ViaEdge, e.cfg.WaypointReinforceDelta); err != nil {
				e.logger.Warn("waypoint reinforcement failed", zap.Error(err))
			}
		}
	}
}

// outgoingWaypoint prefers a GraphStore's authoritative Neighborhood
// lookup when the backend stores waypoints outside the main Store
// (e.g. Neo4jStore); otherwise it falls back to Store's own method.
func (e *Engine) outgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error) {
	if gs, ok := e.store.(store.GraphStore); ok {
		return gs.Neighborhood(ctx, id)
	}
	return e.store.OutgoingWaypoint(ctx, id)
}
