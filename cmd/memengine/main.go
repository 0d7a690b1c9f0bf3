// Command memengine is a thin demo binary: it wires config, store,
// embedder, classifier, and engine together and exercises add/query/
// stats end to end against the configured backend.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openmemory/engine/internal/config"
	"github.com/openmemory/engine/internal/decay"
	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/engine"
	"github.com/openmemory/engine/internal/sector"
	"github.com/openmemory/engine/internal/store"
	"github.com/openmemory/engine/internal/telemetry"
)

func main() {
	addFlag := flag.String("add", "", "content to add as a new memory")
	queryFlag := flag.String("query", "", "text to query for relevant memories")
	userFlag := flag.String("user", "", "user_id to scope the operation to")
	limitFlag := flag.Int("limit", 5, "max query results")
	statsFlag := flag.Bool("stats", false, "print store stats and exit")
	dbFlag := flag.String("db", "memengine.db", "sqlite database path (store_backend=sqlite only)")
	flag.Parse()

	cfg := config.FromEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync() //nolint:errcheck

	metrics := telemetry.New(prometheus.DefaultRegisterer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := openStore(ctx, cfg, *dbFlag)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer s.Close()

	if init, ok := s.(store.SchemaInitializer); ok {
		if err := init.CreateSchema(ctx); err != nil {
			logger.Fatal("create schema", zap.Error(err))
		}
	}

	provider, err := embed.NewProvider(ctx, cfg.Provider, cfg.ProviderEndpoint)
	if err != nil {
		logger.Fatal("build embed provider", zap.Error(err))
	}
	coordinator := embed.NewCoordinator(embed.Config{
		Tier:         cfg.Tier,
		ProviderName: cfg.Provider,
		Mode:         cfg.EmbedMode,
	}, provider, s, metrics, logger)

	eng := engine.New(s, coordinator, sector.New(), cfg, metrics, logger, nil)

	worker := decay.New(s, decay.Config{
		Interval:    cfg.DecayInterval,
		PruneDays:   cfg.WaypointPruneDays,
		PruneWeight: cfg.WaypointPruneWeight,
	}, metrics, logger, nil)
	worker.Start(ctx)
	defer worker.Stop()

	ranCommand := false

	if *addFlag != "" {
		ranCommand = true
		res, err := eng.Add(ctx, *addFlag, *userFlag, nil, nil)
		if err != nil {
			metrics.AddsTotal.WithLabelValues("error").Inc()
			logger.Fatal("add failed", zap.Error(err))
		}
		metrics.AddsTotal.WithLabelValues("ok").Inc()
		fmt.Printf("added memory %d, sectors=%v, waypoint=%v\n", res.MemoryID, res.Sectors, res.Waypoint)
	}

	if *queryFlag != "" {
		ranCommand = true
		results, err := eng.Query(ctx, *queryFlag, engine.QueryOptions{UserID: *userFlag, Limit: *limitFlag})
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			logger.Fatal("query failed", zap.Error(err))
		}
		metrics.QueriesTotal.WithLabelValues("ok").Inc()
		for _, r := range results {
			fmt.Printf("[%.3f] #%d %s (sim=%.3f salience=%.3f recency=%.3f waypoint=%.3f)\n",
				r.Score, r.Memory.ID, r.Memory.Content, r.Explanation.Sim, r.Explanation.Salience, r.Explanation.Recency, r.Explanation.Waypoint)
		}
	}

	if *statsFlag || !ranCommand {
		stats, err := eng.Stats(ctx)
		if err != nil {
			logger.Fatal("stats failed", zap.Error(err))
		}
		fmt.Printf("total=%d by_sector=%v by_tier=%v decay_last_run=%d\n", stats.Total, stats.BySector, stats.ByTier, stats.DecayLastRun)
	}
}

func openStore(ctx context.Context, cfg config.Config, dbPath string) (store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite", "":
		return store.NewSQLiteStore(ctx, dbPath)
	case "memory":
		return store.NewInMemoryStore(), nil
	case "qdrant":
		return store.NewQdrantStore(cfg.ProviderEndpoint, "memories")
	default:
		return nil, fmt.Errorf("unknown store_backend %q", cfg.StoreBackend)
	}
}

