// Package engine orchestrates add/query/reinforce against the
// classifier, embedder, graph, and store (§4.4, §4.5, §6).
package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openmemory/engine/internal/config"
	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/graph"
	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/sector"
	"github.com/openmemory/engine/internal/store"
	"github.com/openmemory/engine/internal/telemetry"
)

// Engine is the core orchestrator. It holds no memory state of its
// own — every durable fact lives in Store — so a single Engine value
// is safe for concurrent add/query/reinforce calls (§5).
type Engine struct {
	store      store.Store
	embedder   *embed.Coordinator
	classifier *sector.Classifier
	cfg        config.Config
	metrics    *telemetry.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// New builds an Engine. metrics defaults to a private no-op Collector
// when nil. now defaults to time.Now when nil, overridden in tests for
// deterministic decay/recency math.
func New(s store.Store, embedder *embed.Coordinator, classifier *sector.Classifier, cfg config.Config, metrics *telemetry.Collector, logger *zap.Logger, now func() time.Time) *Engine {
	if metrics == nil {
		metrics = telemetry.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, embedder: embedder, classifier: classifier, cfg: cfg, metrics: metrics, logger: logger, now: now}
}

// AddResult is the return value of Add (§6 Core API).
type AddResult struct {
	MemoryID int64
	Sectors  []model.Sector
	Waypoint *model.Waypoint
}

// Add implements §4.4: classify, embed candidate sectors, compute the
// mean vector, find and link a waypoint target, persist atomically.
func (e *Engine) Add(ctx context.Context, content, userID string, tags []string, meta map[string]any) (*AddResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.ErrInvalidInput("content must not be empty")
	}

	cls := e.classifier.Classify(content)

	vecs, err := e.embedder.EmbedBatch(ctx, content, cls.Candidates)
	if err != nil {
		return nil, err
	}
	primaryVec, ok := vecs[cls.PrimarySector]
	if !ok {
		return nil, model.ErrEmbedFailed(cls.PrimarySector, e.providerName(cls.PrimarySector), "primary sector embedding failed", nil)
	}

	now := e.now()
	mem := model.NewMemory(userID, content, cls.PrimarySector, tags, meta, now)
	mem.MeanVec = meanVec(vecs, len(primaryVec))

	sectors := make([]model.Sector, 0, len(vecs))
	vectors := make([]model.Vector, 0, len(vecs))
	for s, v := range vecs {
		sectors = append(sectors, s)
		vectors = append(vectors, model.Vector{Sector: s, Tier: string(e.cfg.Tier), Dim: len(v), V: v})
	}

	best, cosine, found := e.bestWaypointTarget(ctx, userID, mem.MeanVec)
	createsEdge := found && cosine >= e.cfg.WaypointThreshold

	var waypoint *model.Waypoint
	if createsEdge {
		// SrcID is left zero: InsertMemory always treats the new
		// memory's own id as the forward edge's source, since that id
		// does not exist until the insert assigns it.
		waypoint = &model.Waypoint{DstID: best.ID, Weight: cosine}
	}

	if err := e.store.InsertMemory(ctx, mem, vectors, waypoint); err != nil {
		return nil, err
	}

	var createdWaypoint *model.Waypoint
	if createsEdge {
		createdWaypoint = &model.Waypoint{SrcID: mem.ID, DstID: best.ID, Weight: cosine}
		if best.PrimarySector != cls.PrimarySector {
			if err := e.store.UpsertWaypoint(ctx, best.ID, mem.ID, cosine); err != nil {
				e.logger.Warn("reciprocal waypoint upsert failed", zap.Error(err))
			}
		}
	}

	return &AddResult{MemoryID: mem.ID, Sectors: sectors, Waypoint: createdWaypoint}, nil
}

// bestWaypointTarget implements §4.4 step 4's linear scan across every
// sector of candidate memories for the same user, comparing mean
// vectors.
func (e *Engine) bestWaypointTarget(ctx context.Context, userID string, meanVec []float32) (graph.MeanCandidate, float64, bool) {
	ids := map[int64]graph.MeanCandidate{}
	for _, s := range model.Sectors {
		cands, err := e.store.CandidatesBySector(ctx, userID, s)
		if err != nil {
			continue
		}
		for _, c := range cands {
			if _, seen := ids[c.MemoryID]; seen {
				continue
			}
			m, err := e.store.Get(ctx, c.MemoryID)
			if err != nil {
				continue
			}
			ids[c.MemoryID] = graph.MeanCandidate{ID: m.ID, MeanVec: m.MeanVec, PrimarySector: m.PrimarySector}
		}
	}
	candidates := make([]graph.MeanCandidate, 0, len(ids))
	for _, c := range ids {
		candidates = append(candidates, c)
	}
	return graph.BestMatch(meanVec, candidates)
}

func (e *Engine) providerName(s model.Sector) string {
	if !embed.UsesProvider(e.cfg.Tier, s) {
		return "synthetic"
	}
	return e.cfg.Provider
}

// meanVec implements §3's mean_vec invariant: L2-normalized mean of
// the present per-sector vectors, truncated/padded to dim.
func meanVec(vecs map[model.Sector][]float32, dim int) []float32 {
	sum := make([]float64, dim)
	for _, v := range vecs {
		for i := 0; i < dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
	}
	n := float64(len(vecs))
	if n == 0 {
		n = 1
	}
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return model.NormalizeL2(out)
}

// Get returns one memory by id.
func (e *Engine) Get(ctx context.Context, id int64) (*model.Memory, error) {
	return e.store.Get(ctx, id)
}

// List returns a page of memories (§6 `list`).
func (e *Engine) List(ctx context.Context, userID string, filters store.Filters, cursor string, limit int) (store.Page, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.store.List(ctx, userID, filters, cursor, limit)
}

// Delete removes a memory (§6 `delete`).
func (e *Engine) Delete(ctx context.Context, id int64) error {
	return e.store.Delete(ctx, id)
}

// Stats returns store-wide counts (§6 `stats`).
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	return e.store.Stats(ctx)
}

// Reinforce implements §6 `reinforce`: bump a memory's salience by
// delta (default from config) and refresh last_seen_at.
func (e *Engine) Reinforce(ctx context.Context, id int64, delta *float64) (float64, error) {
	m, err := e.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	d := e.cfg.SalienceReinforceDelta
	if delta != nil {
		d = *delta
	}
	newSalience := model.Clamp01(m.Salience + d)
	now := e.now()
	if err := e.store.UpdateSalience(ctx, id, newSalience, now.UnixMilli()); err != nil {
		return 0, err
	}
	return newSalience, nil
}
