// Package decay implements the periodic salience decay, cold-tier
// fingerprinting, and waypoint pruning worker of §4.6.
package decay

import (
	"context"
	"hash/fnv"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openmemory/engine/internal/graph"
	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/store"
	"github.com/openmemory/engine/internal/telemetry"
)

// fingerprintRunes is how much of the original content a fingerprint
// retains, per §4.6 step 4.
const fingerprintRunes = 64

// Config controls the worker's cadence and shard count.
type Config struct {
	Interval    time.Duration // default 120 minutes, per §6 decay_interval_minutes
	NumWorkers  int           // shard count for the per-cycle fan-out
	PruneDays   int           // cadence for waypoint pruning, default 7
	PruneWeight float64       // edges below this weight are pruned, default 0.05
}

// Worker runs Run on a ticker until Stop is called.
type Worker struct {
	store   store.Store
	cfg     Config
	metrics *telemetry.Collector
	logger  *zap.Logger

	stop      chan struct{}
	done      chan struct{}
	lastPrune time.Time
	now       func() time.Time
}

// New builds a decay Worker. metrics defaults to a private no-op
// Collector when nil. now defaults to time.Now; tests override it for
// deterministic elapsed-time math.
func New(s store.Store, cfg Config, metrics *telemetry.Collector, logger *zap.Logger, now func() time.Time) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 120 * time.Minute
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.PruneDays <= 0 {
		cfg.PruneDays = graph.DefaultPruneDays
	}
	if cfg.PruneWeight <= 0 {
		cfg.PruneWeight = graph.DefaultPruneWeight
	}
	if metrics == nil {
		metrics = telemetry.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{store: s, cfg: cfg, metrics: metrics, logger: logger, stop: make(chan struct{}), done: make(chan struct{}), now: now}
}

// Start runs the worker loop in a goroutine, ticking every
// cfg.Interval. Call Stop to end it.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				if err := w.Run(ctx); err != nil {
					w.logger.Warn("decay cycle failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop ends the worker loop and waits for it to exit.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Run executes one decay cycle on demand: shard every memory id by
// hash(id) mod NumWorkers, decay each independently via an errgroup
// bounded to NumWorkers concurrent shards, then prune stale waypoints
// on the worker's first cycle and thereafter whenever the pruning
// cadence has elapsed since the last prune. A per-memory failure is logged
// and does not abort the cycle (§7 propagation).
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		w.metrics.DecayRuns.Inc()
		w.metrics.DecayDuration.Observe(time.Since(start).Seconds())
	}()

	ids, err := w.store.AllMemoryIDs(ctx)
	if err != nil {
		return model.ErrStoreFailed("list memory ids for decay", err)
	}

	shards := make([][]int64, w.cfg.NumWorkers)
	for _, id := range ids {
		h := fnv.New64a()
		_, _ = h.Write([]byte(strconv.FormatInt(id, 10)))
		shard := int(h.Sum64() % uint64(w.cfg.NumWorkers))
		shards[shard] = append(shards[shard], id)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.NumWorkers)
	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			for _, id := range shard {
				if err := w.decayOne(gctx, id); err != nil {
					w.logger.Warn("decay memory failed", zap.Int64("memory_id", id), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait() // per-memory errors are already logged and swallowed above

	now := w.now()
	if w.lastPrune.IsZero() || now.Sub(w.lastPrune) >= time.Duration(w.cfg.PruneDays)*24*time.Hour {
		removed, err := graph.Prune(ctx, w.store, w.cfg.PruneWeight)
		if err != nil {
			w.logger.Warn("waypoint pruning failed", zap.Error(err))
		} else {
			w.logger.Info("waypoint pruning complete", zap.Int("removed", removed))
			w.metrics.WaypointsPruned.Add(float64(removed))
		}
		w.lastPrune = now
	}

	return nil
}

// decayOne implements §4.6 steps 1-4 for a single memory.
func (w *Worker) decayOne(ctx context.Context, id int64) error {
	m, err := w.store.Get(ctx, id)
	if err != nil {
		return err
	}

	now := w.now()
	days := now.Sub(m.LastSeenAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	wasWarmOrHot := m.Tier() != model.TierCold

	newSalience := model.Clamp01(m.Salience * math.Exp(-m.DecayLambda*days))
	if err := w.store.UpdateSalience(ctx, id, newSalience, m.LastSeenAt.UnixMilli()); err != nil {
		return err
	}

	m.Salience = newSalience
	if wasWarmOrHot && m.Tier() == model.TierCold && !m.Cold {
		if err := w.store.ReplaceContent(ctx, id, Fingerprint(m.Content), true); err != nil {
			return err
		}
		w.metrics.ColdCompressions.Inc()
	}
	return nil
}

// Fingerprint implements §4.6 step 4: the first 64 Unicode scalar
// values of content plus a stable hash, a one-way compression — the
// original text is not recoverable from it.
func Fingerprint(content string) string {
	runes := []rune(content)
	if len(runes) > fingerprintRunes {
		runes = runes[:fingerprintRunes]
	}
	head := string(runes)

	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%s…#%s", head, strconv.FormatUint(h.Sum64(), 16))
}
