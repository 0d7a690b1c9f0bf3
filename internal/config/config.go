// Package config loads the engine's flat, env-derived configuration
// (§6) into a single struct built once at startup and passed down
// explicitly — no process-wide mutable singleton (§9).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/graph"
	"github.com/openmemory/engine/internal/ranker"
)

// Config holds every tunable named in §6's configuration key table.
type Config struct {
	Tier             embed.Tier
	Provider         string
	ProviderEndpoint string
	EmbedMode        embed.Mode
	StoreBackend     string

	DecayInterval time.Duration

	MinScore             float64
	WaypointThreshold    float64
	WaypointPruneWeight  float64
	WaypointPruneDays    int
	SalienceReinforceDelta float64
	WaypointReinforceDelta float64
}

// Default returns the spec's documented defaults, unmodified by the
// environment.
func Default() Config {
	return Config{
		Tier:                   embed.TierHybrid,
		Provider:               "synthetic",
		ProviderEndpoint:       "",
		EmbedMode:              embed.ModeSimple,
		StoreBackend:           "sqlite",
		DecayInterval:          120 * time.Minute,
		MinScore:               ranker.DefaultMinScore,
		WaypointThreshold:      graph.DefaultThreshold,
		WaypointPruneWeight:    graph.DefaultPruneWeight,
		WaypointPruneDays:      graph.DefaultPruneDays,
		SalienceReinforceDelta: 0.1,
		WaypointReinforceDelta: graph.DefaultReinforceDelta,
	}
}

// FromEnv starts from Default and overrides each field present in the
// environment, under the OPENMEMORY_ prefix.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("OPENMEMORY_TIER"); v != "" {
		cfg.Tier = embed.Tier(strings.ToUpper(v))
	}
	if v := os.Getenv("OPENMEMORY_PROVIDER"); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("OPENMEMORY_PROVIDER_ENDPOINT"); v != "" {
		cfg.ProviderEndpoint = v
	}
	if v := os.Getenv("OPENMEMORY_EMBED_MODE"); v != "" {
		cfg.EmbedMode = embed.Mode(strings.ToLower(v))
	}
	if v := os.Getenv("OPENMEMORY_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := envInt("OPENMEMORY_DECAY_INTERVAL_MINUTES"); v > 0 {
		cfg.DecayInterval = time.Duration(v) * time.Minute
	}
	if v, ok := envFloat("OPENMEMORY_MIN_SCORE"); ok {
		cfg.MinScore = v
	}
	if v, ok := envFloat("OPENMEMORY_WAYPOINT_THRESHOLD"); ok {
		cfg.WaypointThreshold = v
	}
	if v, ok := envFloat("OPENMEMORY_WAYPOINT_PRUNE_WEIGHT"); ok {
		cfg.WaypointPruneWeight = v
	}
	if v := envInt("OPENMEMORY_WAYPOINT_PRUNE_DAYS"); v > 0 {
		cfg.WaypointPruneDays = v
	}
	if v, ok := envFloat("OPENMEMORY_SALIENCE_REINFORCE_DELTA"); ok {
		cfg.SalienceReinforceDelta = v
	}
	if v, ok := envFloat("OPENMEMORY_WAYPOINT_REINFORCE_DELTA"); ok {
		cfg.WaypointReinforceDelta = v
	}
	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
